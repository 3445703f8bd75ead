// Command sign signs ed25519 login challenges with the instance owner's key.
//
// With -server it fetches the challenge, signs it and exchanges the signature
// for an auth cookie. Without it, challenges are read from stdin.
package main

import (
	"bufio"
	"crypto/ed25519"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/debemdeboas/memories/internal/config"
	"github.com/debemdeboas/memories/internal/routes"
)

var (
	promptStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("63")).Bold(true)
	outputStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("212"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

func main() {
	keyPath := flag.String("key", "privkey.pem", "PEM encoded PKCS#8 ed25519 private key")
	server := flag.String("server", "", "base URL of a running instance, e.g. http://localhost:12600")
	flag.Parse()

	key, err := loadPrivateKey(*keyPath)
	if err != nil {
		fmt.Println(errorStyle.Render("Error loading private key: " + err.Error()))
		os.Exit(1)
	}

	if *server != "" {
		client := &http.Client{Timeout: 10 * time.Second}
		token, err := login(client, strings.TrimRight(*server, "/"), key)
		if err != nil {
			fmt.Println(errorStyle.Render("Login failed: " + err.Error()))
			os.Exit(1)
		}
		fmt.Println(outputStyle.Render(config.CookieAuthToken + "=" + token))
		return
	}

	if err := interactive(os.Stdin, os.Stdout, key); err != nil {
		fmt.Println("Error reading input:", err)
		os.Exit(1)
	}
}

func loadPrivateKey(filename string) (ed25519.PrivateKey, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	return parsePrivateKey(data)
}

func parsePrivateKey(data []byte) (ed25519.PrivateKey, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, errors.New("failed to decode PEM block")
	}
	key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, err
	}
	edKey, ok := key.(ed25519.PrivateKey)
	if !ok {
		return nil, errors.New("not an Ed25519 private key")
	}
	return edKey, nil
}

// sign returns the base64 signature of a base64 challenge.
func sign(key ed25519.PrivateKey, challengeB64 string) (string, error) {
	challenge, err := base64.StdEncoding.DecodeString(challengeB64)
	if err != nil {
		return "", fmt.Errorf("invalid base64: %w", err)
	}
	return base64.StdEncoding.EncodeToString(ed25519.Sign(key, challenge)), nil
}

func interactive(in io.Reader, out io.Writer, key ed25519.PrivateKey) error {
	fmt.Fprintln(out, "Enter challenges one by one. Type 'quit' to exit.")

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, promptStyle.Render("Enter challenge (base64): "))
		if !scanner.Scan() {
			break
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "quit" {
			break
		}

		sig, err := sign(key, line)
		if err != nil {
			fmt.Fprintln(out, errorStyle.Render("Error: "+err.Error()))
			continue
		}
		fmt.Fprintln(out, outputStyle.Render("Signature: "+sig))
	}
	return scanner.Err()
}

func login(client *http.Client, baseURL string, key ed25519.PrivateKey) (string, error) {
	res, err := client.Get(baseURL + routes.AuthChallengePath)
	if err != nil {
		return "", err
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return "", fmt.Errorf("challenge: unexpected status %s", res.Status)
	}

	var body struct {
		Challenge string `json:"challenge"`
	}
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("challenge: %w", err)
	}

	sig, err := sign(key, body.Challenge)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequest(http.MethodPost, baseURL+routes.AuthVerifyPath, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", sig)

	verify, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer verify.Body.Close()
	if verify.StatusCode != http.StatusOK {
		return "", fmt.Errorf("verify: unexpected status %s", verify.Status)
	}

	for _, c := range verify.Cookies() {
		if c.Name == config.CookieAuthToken {
			return c.Value, nil
		}
	}
	return "", errors.New("verify: no auth cookie in response")
}
