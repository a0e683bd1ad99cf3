// ABOUTME: Interactive WebSocket chat loop for chat-cli
// ABOUTME: Prints incoming events and sends each stdin line as a message

package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"

	"github.com/xiaozhu6-2-2/Chat/internal/chat"
)

// outboundMessage carries a nonce so a resent line is stored once.
type outboundMessage struct {
	Content string `json:"content"`
	Nonce   string `json:"nonce"`
}

// formatEvent renders one event as a terminal line.
func formatEvent(ev *chat.Event) string {
	ts := ev.SendAt.Local().Format("15:04:05")
	switch ev.Type {
	case chat.TypeOnlineList:
		names, err := ev.OnlineNames()
		if err != nil {
			return color.HiBlackString("%s * online list unreadable", ts)
		}
		return color.HiBlackString("%s * online: %s", ts, strings.Join(names, ", "))
	default:
		return fmt.Sprintf("%s %s %s", color.HiBlackString(ts), color.CyanString("<%s>", ev.Username), ev.Content)
	}
}

// runChat connects to url and relays between the socket and in/out until
// either side ends or ctx is canceled.
func runChat(ctx context.Context, url string, in io.Reader, out io.Writer) error {
	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	conn, resp, err := websocket.DefaultDialer.DialContext(dialCtx, url, nil)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("connecting: %w (status %d)", err, resp.StatusCode)
		}
		return fmt.Errorf("connecting: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) || gctx.Err() != nil {
					return io.EOF
				}
				return fmt.Errorf("reading: %w", err)
			}
			var ev chat.Event
			if err := json.Unmarshal(data, &ev); err != nil {
				fmt.Fprintf(out, "? %s\n", data)
				continue
			}
			fmt.Fprintln(out, formatEvent(&ev))
		}
	})

	// The scanner stays outside the group since a blocked stdin read cannot
	// be interrupted.
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-gctx.Done():
				return
			}
		}
	}()

	g.Go(func() error {
		for {
			var line string
			var ok bool
			select {
			case <-gctx.Done():
				return nil
			case line, ok = <-lines:
			}
			if !ok {
				return io.EOF
			}
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			frame, err := json.Marshal(outboundMessage{Content: line, Nonce: uuid.NewString()})
			if err != nil {
				return err
			}
			if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return fmt.Errorf("sending: %w", err)
			}
		}
	})

	g.Go(func() error {
		<-gctx.Done()
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		return conn.Close()
	})

	if err := g.Wait(); err != nil && err != io.EOF {
		return err
	}
	return nil
}
