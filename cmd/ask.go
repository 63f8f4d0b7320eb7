// Demo client: sends one prompt through the gateway and renders the three
// phases of the ordered stream (prompt summary, reasoning summary, answer).
package main

import (
	"bufio"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/tidwall/gjson"
	"golang.org/x/term"

	"github.com/reasonflow/reasoning-gateway/internal/utils"
)

const (
	ansiDim   = "\033[2m"
	ansiBold  = "\033[1m"
	ansiReset = "\033[0m"
)

func runAsk(args []string) {
	fs := flag.NewFlagSet("ask", flag.ExitOnError)
	gatewayURL := fs.String("gateway", "http://localhost:8080", "gateway base URL")
	model := fs.String("model", "mock", "model to request")
	summaryModel := fs.String("summary-model", "", "model for summary calls (optional)")
	_ = fs.Parse(args)

	prompt := strings.Join(fs.Args(), " ")
	if prompt == "" {
		fmt.Fprintln(os.Stderr, "usage: reasoning-gateway ask [flags] <prompt>")
		os.Exit(2)
	}

	tty := term.IsTerminal(int(os.Stdout.Fd()))
	styled := func(style, s string) string {
		if !tty {
			return s
		}
		return style + s + ansiReset
	}

	reqBody := map[string]any{
		"model":    *model,
		"stream":   true,
		"messages": []map[string]string{{"role": "user", "content": prompt}},
	}
	if *summaryModel != "" {
		reqBody["summary_model"] = *summaryModel
	}
	payload, err := utils.MarshalNoEscape(reqBody)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	resp, err := http.Post(strings.TrimSuffix(*gatewayURL, "/")+"/v1/chat/completions",
		"application/json", strings.NewReader(string(payload)))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		fmt.Fprintf(os.Stderr, "Error: gateway returned %s\n", resp.Status)
		os.Exit(1)
	}

	var kind string
	inAnswer := false
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "event: "):
			kind = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			data := strings.TrimPrefix(line, "data: ")
			switch kind {
			case "summary.prompt":
				fmt.Println(styled(ansiBold, "── prompt summary ──"))
				fmt.Println(styled(ansiDim, gjson.Get(data, "text").String()))
			case "summary.reasoning":
				fmt.Println(styled(ansiBold, "── reasoning summary ──"))
				fmt.Println(styled(ansiDim, gjson.Get(data, "text").String()))
			case "output.delta":
				if !inAnswer {
					fmt.Println(styled(ansiBold, "── answer ──"))
					inAnswer = true
				}
				fmt.Print(gjson.Get(data, "text").String())
			case "output.done":
				fmt.Println()
			case "error":
				fmt.Fprintf(os.Stderr, "\n[%s error] %s\n",
					gjson.Get(data, "stage").String(), gjson.Get(data, "message").String())
			}
		}
	}
	if err := scanner.Err(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: stream read failed: %v\n", err)
		os.Exit(1)
	}
}
