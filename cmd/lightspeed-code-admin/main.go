package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/tcriess/lightspeed-code/room"
	"github.com/tcriess/lightspeed-code/ws"
)

// A very simple CLI tool for the administration of lightspeed-code rooms.

var (
	serverUrl string

	httpClient = &http.Client{Timeout: 10 * time.Second}
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "lightspeed-code-admin",
		Short: "administer a running lightspeed-code server",
	}
	rootCmd.PersistentFlags().StringVarP(&serverUrl, "server", "s", "http://localhost:8000", "base url of the server")

	roomsCmd := &cobra.Command{
		Use:   "rooms",
		Short: "list all live rooms",
		RunE: func(cmd *cobra.Command, args []string) error {
			stats := make([]room.Stats, 0)
			if err := getJSON("/api/rooms", &stats); err != nil {
				return err
			}
			if len(stats) == 0 {
				fmt.Println("no live rooms")
				return nil
			}
			for _, s := range stats {
				fmt.Printf("%s\tmembers=%d\tmarks=%d\tlog=%d\n", s.Id, s.Members, s.Marks, s.LogLen)
			}
			return nil
		},
	}

	roomCmd := &cobra.Command{
		Use:   "room <id>",
		Short: "show membership, presence and marks of one room",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			detail := ws.RoomDetail{}
			if err := getJSON("/api/rooms/"+args[0], &detail); err != nil {
				return err
			}
			out, err := json.MarshalIndent(detail, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(out))
			return nil
		},
	}

	clearCmd := &cobra.Command{
		Use:   "clear <id>",
		Short: "bulk-clear the marks and activity log of a room",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := httpClient.Post(serverUrl+"/api/rooms/"+args[0]+"/clear", "application/json", nil)
			if err != nil {
				return err
			}
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("server returned status %d", resp.StatusCode)
			}
			fmt.Println("cleared")
			return nil
		},
	}

	rootCmd.AddCommand(roomsCmd, roomCmd, clearCmd)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func getJSON(path string, out interface{}) error {
	resp, err := httpClient.Get(serverUrl + path)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("server returned status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
