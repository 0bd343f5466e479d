package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

type remoteOptions struct {
	addr    string
	token   string
	jsonOut bool
}

func (o *remoteOptions) bind(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVar(&o.addr, "addr", envOrDefault("GEOGATE_ADDR", defaultAddr), "geogate API address")
	f.StringVar(&o.token, "token", envOrDefault("GEOGATE_TOKEN", ""), "bearer token")
	f.BoolVar(&o.jsonOut, "json", false, "print raw JSON response")
}

func newVerifyCmd() *cobra.Command {
	var opts remoteOptions
	cmd := &cobra.Command{
		Use:   "verify <receipt_id>",
		Short: "Verify a receipt signature against the gateway ledger",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			body, status, err := httpGet(opts.addr+"/v1/verify/"+url.PathEscape(args[0]), opts.token)
			if err != nil {
				return err
			}
			if status != http.StatusOK {
				return fmt.Errorf("verify failed: %s", strings.TrimSpace(string(body)))
			}
			if opts.jsonOut {
				_, err := cmd.OutOrStdout().Write(body)
				return err
			}

			var payload struct {
				ReceiptID     string `json:"receipt_id"`
				Valid         bool   `json:"valid"`
				Error         string `json:"error,omitempty"`
				OutcomeStatus string `json:"outcome_status"`
				Final         bool   `json:"final"`
			}
			if err := json.Unmarshal(body, &payload); err != nil {
				return fmt.Errorf("invalid response: %w", err)
			}
			out := cmd.OutOrStdout()
			if payload.Valid {
				fmt.Fprintf(out, "valid=true receipt_id=%s outcome=%s final=%t\n", payload.ReceiptID, payload.OutcomeStatus, payload.Final)
				return nil
			}
			fmt.Fprintf(out, "valid=false receipt_id=%s error=%s\n", payload.ReceiptID, payload.Error)
			return errSilent
		},
	}
	opts.bind(cmd)
	return cmd
}

func newTasksCmd() *cobra.Command {
	var (
		opts   remoteOptions
		status string
		limit  int
	)
	cmd := &cobra.Command{
		Use:   "tasks",
		Short: "List human review tasks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			q := url.Values{}
			if status != "" {
				q.Set("status", status)
			}
			if limit > 0 {
				q.Set("limit", fmt.Sprint(limit))
			}
			target := opts.addr + "/v1/hitl/tasks"
			if len(q) > 0 {
				target += "?" + q.Encode()
			}

			body, code, err := httpGet(target, opts.token)
			if err != nil {
				return err
			}
			if code != http.StatusOK {
				return fmt.Errorf("list tasks failed: %s", strings.TrimSpace(string(body)))
			}
			if opts.jsonOut {
				_, err := cmd.OutOrStdout().Write(body)
				return err
			}

			var payload struct {
				Tasks []struct {
					TaskID     string   `json:"task_id"`
					DecisionID string   `json:"decision_id"`
					Status     string   `json:"status"`
					Reasons    []string `json:"reasons"`
				} `json:"tasks"`
			}
			if err := json.Unmarshal(body, &payload); err != nil {
				return fmt.Errorf("invalid response: %w", err)
			}
			out := cmd.OutOrStdout()
			if len(payload.Tasks) == 0 {
				fmt.Fprintln(out, "no tasks")
				return nil
			}
			for _, t := range payload.Tasks {
				fmt.Fprintf(out, "%s\t%s\t%s\t%s\n", t.TaskID, t.Status, t.DecisionID, strings.Join(t.Reasons, "; "))
			}
			return nil
		},
	}
	opts.bind(cmd)
	cmd.Flags().StringVar(&status, "status", "pending", "task status filter (pending, resolved, dismissed; empty for all)")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum tasks to list")
	return cmd
}

var httpClient = &http.Client{Timeout: 15 * time.Second}

func httpGet(target, token string) ([]byte, int, error) {
	req, err := http.NewRequest(http.MethodGet, target, nil)
	if err != nil {
		return nil, 0, err
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, err
	}
	return body, resp.StatusCode, nil
}
