package main

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
)

// Kicks a refresh on a running watcher and prints the job the server
// started, so the poll endpoint can be watched from the shell.
func main() {
	adminSecret := strings.TrimSpace(os.Getenv("ADMIN_SECRET"))
	if adminSecret == "" {
		fmt.Println("Missing ADMIN_SECRET environment variable")
		os.Exit(1)
	}

	base := strings.TrimRight(os.Getenv("WATCHER_URL"), "/")
	if base == "" {
		port := os.Getenv("PORT")
		if port == "" {
			port = "8081"
		}
		base = "http://localhost:" + port
	}

	req, err := http.NewRequest(http.MethodPost, base+"/api/v1/refresh", nil)
	if err != nil {
		fmt.Printf("Error creating request: %v\n", err)
		os.Exit(1)
	}
	req.Header.Set("X-Admin-Secret", adminSecret)
	req.Header.Set("Authorization", "Bearer "+adminSecret)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		fmt.Printf("Error sending request: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	fmt.Printf("%s\n%s\n", resp.Status, strings.TrimSpace(string(body)))

	// 409 means a refresh is already in flight; that still counts.
	if resp.StatusCode != http.StatusAccepted && resp.StatusCode != http.StatusConflict {
		os.Exit(1)
	}
}
