package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"

	"marswalk/internal/observerproto"
)

func newObserveCmd() *cobra.Command {
	var (
		url   string
		count int
	)
	cmd := &cobra.Command{
		Use:   "observe",
		Short: "Follow a running simulation's observer stream",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext(cmd.Context())
			defer cancel()
			jsonOut, _ := cmd.Flags().GetBool("json")
			return observe(ctx, url, count, jsonOut, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&url, "url", "ws://127.0.0.1:8089/v1/observer/ws", "Observer stream URL")
	cmd.Flags().IntVar(&count, "count", 0, "Stop after this many frames (0 = until the stream closes)")
	return cmd
}

func observe(ctx context.Context, url string, count int, raw bool, out io.Writer) error {
	d := websocket.Dialer{HandshakeTimeout: 5 * time.Second}
	conn, resp, err := d.DialContext(ctx, url, http.Header{})
	if err != nil {
		return fmt.Errorf("dial %s: %w", url, err)
	}
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		<-ctx.Done()
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		_ = conn.Close()
	}()

	seen := 0
	for count <= 0 || seen < count {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("read: %w", err)
		}
		var f observerproto.FrameMsg
		if err := json.Unmarshal(msg, &f); err != nil || f.Type != observerproto.TypeFrame {
			continue
		}
		seen++
		if raw {
			fmt.Fprintln(out, string(msg))
			continue
		}
		fmt.Fprintf(out, "tick %d:", f.Tick)
		for _, a := range f.Agents {
			fmt.Fprintf(out, " %s(%d,%d)", markerOrID(a), a.Pos[0], a.Pos[1])
		}
		fmt.Fprintf(out, " trail=%d", len(f.Trail))
		if len(f.Unsupported) > 0 {
			fmt.Fprintf(out, " unsupported=%v", f.Unsupported)
		}
		fmt.Fprintln(out)
	}
	return nil
}

func markerOrID(a observerproto.AgentState) string {
	if a.Marker != "" {
		return a.Marker
	}
	return fmt.Sprintf("#%d", a.ID)
}
