package main

import (
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
)

const defaultServerAddr = "http://localhost:8000"

func main() {
	if len(os.Args) < 2 {
		log.Fatalf("Usage: %s <bearer-token> [server-url] [path]", os.Args[0])
	}

	token := os.Args[1]
	serverAddr := defaultServerAddr
	if len(os.Args) > 2 {
		serverAddr = os.Args[2]
	}
	path := "/?page=1&pageSize=10"
	if len(os.Args) > 3 {
		path = os.Args[3]
	}

	first := send(serverAddr+path, token, nil)
	fmt.Printf("First request:  %d\n", first.StatusCode)
	if first.StatusCode != http.StatusOK && first.StatusCode != http.StatusNoContent {
		body, _ := io.ReadAll(first.Body)
		log.Fatalf("Unexpected status %d: %s", first.StatusCode, body)
	}

	etag := first.Header.Get("ETag")
	lastModified := first.Header.Get("Last-Modified")
	fmt.Printf("  ETag:          %s\n", etag)
	fmt.Printf("  Last-Modified: %s\n", lastModified)
	if etag == "" || lastModified == "" {
		log.Fatal("Response is missing validators")
	}

	second := send(serverAddr+path, token, map[string]string{
		"If-None-Match":     etag,
		"If-Modified-Since": lastModified,
	})
	fmt.Printf("Second request: %d\n", second.StatusCode)
	if second.StatusCode != http.StatusNotModified {
		log.Fatalf("Expected %d, got %d", http.StatusNotModified, second.StatusCode)
	}
	if got := second.Header.Get("ETag"); got != etag {
		log.Fatalf("Expected ETag %s on 304, got %s", etag, got)
	}

	third := send(serverAddr+path, token, map[string]string{
		"If-None-Match": etag,
	})
	fmt.Printf("Without If-Modified-Since: %d\n", third.StatusCode)
	if third.StatusCode == http.StatusNotModified {
		log.Fatal("Expected a full response without If-Modified-Since")
	}

	fmt.Println("Conditional requests behave as expected")
}

func send(url, token string, headers map[string]string) *http.Response {
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		log.Fatalf("Failed to create request: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		log.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp
}
