package errors

var (
	ErrInvalidToken     = Unauthorized("Unauthorized - Invalid or missing API token")
	ErrInvalidSignature = Unauthorized("Invalid webhook signature")
	ErrInvalidWebhook   = Unauthorized("Invalid webhook ID or bot inactive")
	ErrInvalidLogin     = Unauthorized("Invalid username or password")
	ErrNotChannelMember = Forbidden("You must be a member of this private channel to send messages")
	ErrChannelForbidden = Forbidden("Channel not accessible")
	ErrAdminRequired    = Forbidden("Admin privileges required")
	ErrSignupsDisabled  = Forbidden("Sign ups are disabled by the administrator")
	ErrChannelNotFound  = NotFound("Channel not found")
	ErrUserNotFound     = NotFound("User not found")
	ErrBotNotFound      = NotFound("Bot not found")
	ErrTokenNotFound    = NotFound("Token not found")
	ErrMessageRequired  = Field("content", "Message content is required")
	ErrMessageTooLong   = Field("content", "Message content is too long (maximum is 2000 characters)")
	ErrCannotDMSelf     = Field("user_id", "Cannot DM self")
	ErrAlreadyMember    = Conflict("Already a member of this channel")
	ErrNotMember        = Conflict("Not a member of this channel")
	ErrUsernameTaken    = Conflict("Username has already been taken")
	ErrChannelNameTaken = Conflict("Channel name has already been taken")
	ErrBotNameTaken     = Conflict("Bot name has already been taken")
	ErrTokenNameTaken   = Conflict("Token name has already been taken")
	ErrDMConflict       = Conflict("Direct message channel belongs to other users")
)
