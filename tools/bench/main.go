package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/ratelimit"
	"golang.org/x/sync/errgroup"
)

// -------------------- 统计 --------------------

type Stats struct {
	Total      int
	Successful int
	Failed     int
	sumLatency time.Duration
	MaxLatency time.Duration
	MinLatency time.Duration
	mu         sync.Mutex
}

func (s *Stats) Add(success bool, latency time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Total++
	if !success {
		s.Failed++
		return
	}
	s.Successful++
	s.sumLatency += latency
	if latency > s.MaxLatency {
		s.MaxLatency = latency
	}
	if s.MinLatency == 0 || latency < s.MinLatency {
		s.MinLatency = latency
	}
}

func (s *Stats) Average() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Successful == 0 {
		return 0
	}
	return s.sumLatency / time.Duration(s.Successful)
}

// -------------------- 发消息 --------------------

type apiResponse struct {
	Code int `json:"code"`
	Data struct {
		MessageID uint `json:"message_id"`
		ChannelID uint `json:"channel_id"`
	} `json:"data"`
}

type client struct {
	base  string
	token string
	room  string
	http  *http.Client
}

func (c *client) post(ctx context.Context, content string) (uint, error) {
	body, _ := json.Marshal(map[string]string{
		"message": content,
		"room_id": c.room,
		"sender":  "bench",
	})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/api/v1/messages", bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		return 0, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	var out apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, err
	}
	return out.Data.ChannelID, nil
}

// -------------------- 订阅 --------------------

// listen 订阅频道主题，统计收到的 new_message 事件
func listen(ctx context.Context, base, token string, channelID uint, received *atomic.Int64) error {
	u, err := url.Parse(base)
	if err != nil {
		return err
	}
	if u.Scheme == "https" {
		u.Scheme = "wss"
	} else {
		u.Scheme = "ws"
	}
	u.Path = "/ws"
	u.RawQuery = url.Values{"token": {token}}.Encode()

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return err
	}
	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()

	topic := fmt.Sprintf("channel_%d", channelID)
	if err := conn.WriteJSON(map[string]string{"type": "subscribe", "topic": topic}); err != nil {
		return err
	}
	for {
		var event struct {
			Type string `json:"type"`
		}
		if err := conn.ReadJSON(&event); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		if event.Type == "new_message" {
			received.Add(1)
		}
	}
}

// -------------------- 入口 --------------------

func argInt(i, def int) int {
	if len(os.Args) > i {
		if v, err := strconv.Atoi(os.Args[i]); err == nil && v > 0 {
			return v
		}
	}
	return def
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func main() {
	concurrency := argInt(1, 5)
	perWorker := argInt(2, 20)
	rate := argInt(3, 100)

	c := &client{
		base:  getEnv("BENCH_BASE_URL", "http://localhost:8080"),
		token: os.Getenv("BENCH_TOKEN"),
		room:  getEnv("BENCH_ROOM", "bench"),
		http:  &http.Client{Timeout: 8 * time.Second},
	}
	if c.token == "" {
		fmt.Println("请通过 BENCH_TOKEN 提供API令牌")
		os.Exit(1)
	}

	fmt.Println("=== HomeChat 消息写入压测 ===")
	fmt.Printf("目标: %s 频道: %s 并发: %d 每协程消息: %d 速率: %d/s\n", c.base, c.room, concurrency, perWorker, rate)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 预热一条消息，顺便拿到频道ID
	channelID, err := c.post(ctx, "bench warmup")
	if err != nil {
		fmt.Println("预热失败:", err)
		os.Exit(1)
	}

	var received atomic.Int64
	listenCtx, stopListen := context.WithCancel(ctx)
	listenErr := make(chan error, 1)
	go func() { listenErr <- listen(listenCtx, c.base, c.token, channelID, &received) }()
	time.Sleep(300 * time.Millisecond)

	stats := &Stats{}
	limiter := ratelimit.New(rate)
	g, gctx := errgroup.WithContext(ctx)
	start := time.Now()
	for i := 0; i < concurrency; i++ {
		id := i
		g.Go(func() error {
			for j := 0; j < perWorker; j++ {
				limiter.Take()
				begin := time.Now()
				_, err := c.post(gctx, fmt.Sprintf("bench %d-%d", id, j))
				stats.Add(err == nil, time.Since(begin))
			}
			return nil
		})
	}
	_ = g.Wait()
	took := time.Since(start)

	// 等待广播送达
	time.Sleep(time.Second)
	stopListen()
	if err := <-listenErr; err != nil {
		fmt.Println("订阅异常:", err)
	}

	fmt.Println("\n=== 压测结果 ===")
	fmt.Printf("耗时: %v\n", took)
	fmt.Printf("总请求: %d 成功: %d 失败: %d\n", stats.Total, stats.Successful, stats.Failed)
	fmt.Printf("延迟 平均: %v 最大: %v 最小: %v\n", stats.Average(), stats.MaxLatency, stats.MinLatency)
	if took > 0 {
		fmt.Printf("QPS: %.2f\n", float64(stats.Successful)/took.Seconds())
	}
	fmt.Printf("收到广播: %d/%d\n", received.Load(), stats.Successful)
}
