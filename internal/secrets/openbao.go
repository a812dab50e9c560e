package secrets

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"
)

var ErrSecretNotFound = errors.New("openbao secret path not found")

// Bootstrap loads the gateway credentials (and anything else stored beside
// them) from an OpenBao KV path and exports them as environment variables
// before config.Load runs. When the OPENBAO_* variables are absent the
// function is a no-op so env-only deployments keep working.
func Bootstrap(ctx context.Context) error {
	addr := strings.TrimRight(strings.TrimSpace(os.Getenv("OPENBAO_ADDR")), "/")
	token := os.Getenv("OPENBAO_TOKEN")
	secretPath := strings.Trim(strings.TrimSpace(os.Getenv("OPENBAO_SECRET_PATH")), "/")
	if addr == "" || token == "" || secretPath == "" {
		return nil
	}

	mount := strings.Trim(strings.TrimSpace(os.Getenv("OPENBAO_MOUNT")), "/")
	if mount == "" {
		mount = "secret"
	}

	secrets, err := readKV(ctx, addr, token, mount, secretPath)
	if err != nil {
		return err
	}
	for k, v := range secrets {
		_ = os.Setenv(k, v)
	}
	return nil
}

func readKV(ctx context.Context, addr, token, mount, path string) (map[string]string, error) {
	url := fmt.Sprintf("%s/v1/%s/data/%s", addr, mount, path)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create OpenBao request: %w", err)
	}
	req.Header.Set("X-Vault-Token", token)
	if ns := strings.TrimSpace(os.Getenv("OPENBAO_NAMESPACE")); ns != "" {
		req.Header.Set("X-Vault-Namespace", ns)
	}

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call OpenBao: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, ErrSecretNotFound
	default:
		return nil, fmt.Errorf("openbao request failed: status=%d", resp.StatusCode)
	}

	var payload struct {
		Data struct {
			Data map[string]any `json:"data"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode OpenBao response: %w", err)
	}

	out := make(map[string]string, len(payload.Data.Data))
	for k, v := range payload.Data.Data {
		if s, ok := v.(string); ok {
			out[k] = s
		}
		// non-string values are skipped rather than failing the bootstrap
	}
	return out, nil
}
