package cli

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/spf13/cobra"

	"github.com/quorumlabs/quorum/internal/council"
)

// NewAskCmd sends a question to the daemon and streams deliberation progress.
func NewAskCmd(opts *Options) *cobra.Command {
	var conversationID string

	cmd := &cobra.Command{
		Use:   "ask \"<question>\"",
		Short: "Put a question to the council and stream the deliberation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}

			question := args[0]
			if strings.TrimSpace(question) == "" {
				return fmt.Errorf("question cannot be empty")
			}

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			baseURL := daemonURL(cfg.Server.Addr)
			if conversationID == "" {
				conversationID, err = createConversation(ctx, baseURL)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "[conversation %s]\n", conversationID)
			}

			return streamDeliberation(ctx, cmd, baseURL, conversationID, question)
		},
	}

	cmd.Flags().StringVar(&conversationID, "conversation", "", "Continue an existing conversation id")
	return cmd
}

func daemonURL(addr string) string {
	if strings.HasPrefix(addr, "http://") || strings.HasPrefix(addr, "https://") {
		return addr
	}
	if strings.HasPrefix(addr, ":") {
		return "http://localhost" + addr
	}
	return "http://" + addr
}

func createConversation(ctx context.Context, baseURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/api/conversations", nil)
	if err != nil {
		return "", err
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("daemon returned status %d", resp.StatusCode)
	}

	var conv struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&conv); err != nil {
		return "", fmt.Errorf("decode conversation: %w", err)
	}
	return conv.ID, nil
}

func streamDeliberation(ctx context.Context, cmd *cobra.Command, baseURL, conversationID, question string) error {
	data, err := json.Marshal(map[string]string{"content": question})
	if err != nil {
		return err
	}

	url := fmt.Sprintf("%s/api/conversations/%s/message/stream", baseURL, conversationID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("daemon returned status %d", resp.StatusCode)
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var evt council.Event
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &evt); err != nil {
			return fmt.Errorf("decode event: %w", err)
		}
		if err := renderEvent(cmd, evt); err != nil {
			return err
		}
	}
	return scanner.Err()
}

func renderEvent(cmd *cobra.Command, evt council.Event) error {
	out := cmd.OutOrStdout()
	switch evt.Type {
	case council.EventStage1Start:
		fmt.Fprintln(out, "[stage 1] collecting advisor responses...")
	case council.EventStage1Complete:
		for _, r := range evt.Responses {
			fmt.Fprintf(out, "\n--- %s ---\n%s\n", r.Model, r.Response)
		}
	case council.EventStage2Start:
		fmt.Fprintln(out, "\n[stage 2] blind peer review...")
	case council.EventStage2Complete:
		for _, agg := range evt.Aggregate {
			fmt.Fprintf(out, "  %s: avg rank %.2f (%d votes)\n", agg.Model, agg.AverageRank, agg.Votes)
		}
	case council.EventStage3Start:
		fmt.Fprintln(out, "\n[stage 3] chairman synthesis...")
	case council.EventStage3Complete:
		if evt.Synthesis != nil {
			fmt.Fprintf(out, "\n%s\n", evt.Synthesis.Response)
		}
	case council.EventTitleComplete:
		fmt.Fprintf(out, "\n[title] %s\n", evt.Title)
	case council.EventComplete:
		fmt.Fprintln(out, "\n[done]")
	case council.EventError:
		return fmt.Errorf("daemon error: %s", evt.Error)
	}
	return nil
}
