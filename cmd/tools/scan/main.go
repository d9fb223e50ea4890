package main

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
)

// Triggers a scan run on a live server through the admin endpoint.
func main() {
	adminSecret := strings.TrimSpace(os.Getenv("ADMIN_SECRET"))
	if adminSecret == "" {
		fmt.Println("Missing ADMIN_SECRET environment variable")
		os.Exit(1)
	}

	base := os.Getenv("SERVER_URL")
	if base == "" {
		base = "http://localhost:8081"
	}

	req, err := http.NewRequest("POST", base+"/api/v1/admin/scan", nil)
	if err != nil {
		fmt.Printf("Error creating request: %v\n", err)
		os.Exit(1)
	}
	req.Header.Set("X-Admin-Secret", adminSecret)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		fmt.Printf("Error sending request: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	fmt.Printf("Response Status: %s\n%s\n", resp.Status, body)
	if resp.StatusCode != http.StatusAccepted {
		os.Exit(1)
	}
}
