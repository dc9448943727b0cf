package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/antoniostano/npctalk/internal/protocol"
	"github.com/antoniostano/npctalk/internal/session"
	"github.com/antoniostano/npctalk/internal/wire"
)

type benchOptions struct {
	baseURL       string
	playerID      string
	npcID         int32
	rounds        int
	promptTimeout time.Duration
	maxPrompts    int
	verbose       bool
}

func newBenchCommand() *cobra.Command {
	var opts benchOptions
	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Drive a conversation against a running server and report prompt latency",
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts.baseURL = strings.TrimRight(strings.TrimSpace(opts.baseURL), "/")
			if opts.baseURL == "" {
				return errors.New("base-url is required")
			}
			if opts.rounds <= 0 {
				return errors.New("rounds must be > 0")
			}
			if opts.promptTimeout < 100*time.Millisecond {
				opts.promptTimeout = 100 * time.Millisecond
			}
			report, err := runBench(cmd.Context(), opts, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), report)
			return nil
		},
	}
	cmd.Flags().StringVar(&opts.baseURL, "base-url", "http://127.0.0.1:8080", "npctalk base URL")
	cmd.Flags().StringVar(&opts.playerID, "player-id", "bench-player", "player_id of the synthetic session")
	cmd.Flags().Int32Var(&opts.npcID, "npc", 9010000, "npc id to talk to")
	cmd.Flags().IntVar(&opts.rounds, "rounds", 5, "number of conversations to run")
	cmd.Flags().DurationVar(&opts.promptTimeout, "prompt-timeout", 5*time.Second, "timeout waiting for each server frame")
	cmd.Flags().IntVar(&opts.maxPrompts, "max-prompts", 200, "abort a conversation after this many prompts")
	cmd.Flags().BoolVar(&opts.verbose, "verbose", false, "print every prompt")
	return cmd
}

func runBench(ctx context.Context, opts benchOptions, out io.Writer) (string, error) {
	httpClient := &http.Client{Timeout: 15 * time.Second}
	sessionID, err := createBenchSession(ctx, httpClient, opts)
	if err != nil {
		return "", errors.Wrap(err, "create session")
	}
	defer func() {
		_ = endBenchSession(context.Background(), httpClient, opts.baseURL, sessionID)
	}()

	wsURL, err := wsURLForSession(opts.baseURL, sessionID)
	if err != nil {
		return "", errors.Wrap(err, "build ws URL")
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return "", errors.Wrap(err, "open websocket")
	}
	defer conn.Close()

	var latencies []time.Duration
	for round := 1; round <= opts.rounds; round++ {
		if err := conn.WriteMessage(websocket.BinaryMessage, protocol.EncodeStartTalk(opts.npcID)); err != nil {
			return "", errors.Wrapf(err, "round %d start talk", round)
		}
		sentAt := time.Now()
		prompts := 0
	conversation:
		for {
			_ = conn.SetReadDeadline(time.Now().Add(opts.promptTimeout))
			kind, data, err := conn.ReadMessage()
			if err != nil {
				return "", errors.Wrapf(err, "round %d read", round)
			}
			if kind == websocket.TextMessage {
				ended, err := handleBenchEvent(data)
				if err != nil {
					return "", errors.Wrapf(err, "round %d", round)
				}
				if ended {
					break conversation
				}
				continue
			}

			reply, label, err := autoAnswer(data)
			if err != nil {
				return "", errors.Wrapf(err, "round %d", round)
			}
			if reply == nil {
				// shop or storage window
				continue
			}
			latencies = append(latencies, time.Since(sentAt))
			prompts++
			if opts.verbose {
				fmt.Fprintf(out, "bench: round %d prompt %d %s in %s\n", round, prompts, label, time.Since(sentAt).Round(time.Microsecond))
			}
			if prompts > opts.maxPrompts {
				return "", errors.Errorf("round %d exceeded %d prompts", round, opts.maxPrompts)
			}
			if err := conn.WriteMessage(websocket.BinaryMessage, protocol.EncodeTalkMore(reply)); err != nil {
				return "", errors.Wrapf(err, "round %d reply", round)
			}
			sentAt = time.Now()
		}
	}
	return summarize(latencies, opts.rounds), nil
}

// handleBenchEvent reports whether the event ends the current conversation.
func handleBenchEvent(data []byte) (bool, error) {
	msg, err := protocol.ParseServerEvent(data)
	if err != nil {
		return false, err
	}
	switch m := msg.(type) {
	case protocol.ErrorEvent:
		return false, errors.Errorf("server error %s: %s", m.Code, m.Detail)
	case protocol.SystemEvent:
		return m.Code == protocol.CodeConversationEnded, nil
	}
	return false, nil
}

// autoAnswer picks a response to an NPC_TALK frame: next, yes, the first
// menu entry or avatar, the minimum number and the default text. Frames of
// other ops get a nil reply.
func autoAnswer(frame []byte) ([]byte, string, error) {
	op, ok := protocol.FrameOp(frame)
	if !ok {
		return nil, "", errors.New("short frame")
	}
	if op != wire.OpNPCTalk {
		return nil, protocol.OpName(op), nil
	}
	if len(frame) < 8 {
		return nil, "", errors.New("short npc talk frame")
	}
	kind := wire.PromptKind(frame[7])
	w := wire.NewWriter(8)
	w.WriteUint8(uint8(kind))
	w.WriteInt8(1)

	switch kind {
	case wire.KindSay, wire.KindYesNo, wire.KindAccept, wire.KindAcceptNoEsc:
	case wire.KindMenu:
		w.WriteInt32(0)
	case wire.KindAvatar:
		w.WriteUint8(0)
	case wire.KindNumber:
		r := wire.NewReader(frame[8:])
		if _, err := r.ReadString(); err != nil {
			return nil, "", err
		}
		if _, err := r.ReadInt32(); err != nil {
			return nil, "", err
		}
		minimum, err := r.ReadInt32()
		if err != nil {
			return nil, "", err
		}
		w.WriteInt32(minimum)
	case wire.KindText:
		r := wire.NewReader(frame[8:])
		if _, err := r.ReadString(); err != nil {
			return nil, "", err
		}
		def, err := r.ReadString()
		if err != nil {
			return nil, "", err
		}
		w.WriteString(def)
	case wire.KindQuiz, wire.KindQuestion:
		w.WriteString("bench")
	default:
		return nil, "", errors.Errorf("unknown prompt kind 0x%02x", uint8(kind))
	}
	reply, err := w.Bytes()
	return reply, kind.String(), err
}

func summarize(latencies []time.Duration, rounds int) string {
	if len(latencies) == 0 {
		return fmt.Sprintf("bench: %d rounds, no prompts", rounds)
	}
	sorted := append([]time.Duration(nil), latencies...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	var total time.Duration
	for _, d := range sorted {
		total += d
	}
	p95 := sorted[(len(sorted)*95+99)/100-1]
	return fmt.Sprintf("bench: %d rounds, %d prompts, min=%s avg=%s p95=%s max=%s",
		rounds, len(sorted),
		sorted[0].Round(time.Microsecond),
		(total / time.Duration(len(sorted))).Round(time.Microsecond),
		p95.Round(time.Microsecond),
		sorted[len(sorted)-1].Round(time.Microsecond))
}

func createBenchSession(ctx context.Context, client *http.Client, opts benchOptions) (string, error) {
	payload, err := json.Marshal(session.CreateRequest{PlayerID: opts.playerID, PlayerName: "Bench"})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, opts.baseURL+"/v1/players/session", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer res.Body.Close()
	body, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return "", err
	}
	if res.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("HTTP %d: %s", res.StatusCode, strings.TrimSpace(string(body)))
	}

	var created session.CreateResponse
	if err := json.Unmarshal(body, &created); err != nil {
		return "", err
	}
	if strings.TrimSpace(created.SessionID) == "" {
		return "", fmt.Errorf("missing session_id in response")
	}
	return created.SessionID, nil
}

func endBenchSession(ctx context.Context, client *http.Client, baseURL, sessionID string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/v1/players/session/"+url.PathEscape(sessionID)+"/end", nil)
	if err != nil {
		return err
	}
	res, err := client.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(res.Body, 1<<20))
	return nil
}

func wsURLForSession(baseURL, sessionID string) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/v1/players/session/ws"
	q := u.Query()
	q.Set("session_id", sessionID)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
