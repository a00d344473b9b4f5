package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	neturl "net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hyperjump/holokernel/internal/models"
)

var httpClient = &http.Client{Timeout: 30 * time.Second}

// apiCall sends body (if non-nil) as JSON and decodes a response with one of the
// accepted status codes into out.
func apiCall(method, url string, body, out interface{}, accept ...int) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	ok := false
	for _, code := range accept {
		if resp.StatusCode == code {
			ok = true
			break
		}
	}
	if !ok {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func associateViaHTTP(serverURL string, req *models.AssociateRequest) (*models.AssociateResponse, error) {
	var out models.AssociateResponse
	if err := apiCall(http.MethodPost, serverURL+"/api/v1/memories", req, &out, http.StatusCreated); err != nil {
		return nil, err
	}
	return &out, nil
}

func recallViaHTTP(serverURL string, req *models.InputRequest) (*models.RecallResponse, error) {
	var out models.RecallResponse
	if err := apiCall(http.MethodPost, serverURL+"/api/v1/recall", req, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

func statusViaHTTP(serverURL string) (*models.StatusResponse, error) {
	var out models.StatusResponse
	if err := apiCall(http.MethodGet, serverURL+"/api/v1/status", nil, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

func sessionsViaHTTP(serverURL string, offset, limit int) (*models.SessionsResponse, error) {
	var out models.SessionsResponse
	url := fmt.Sprintf("%s/api/v1/journal/sessions?offset=%d&limit=%d", serverURL, offset, limit)
	if err := apiCall(http.MethodGet, url, nil, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

func eventsViaHTTP(serverURL, sessionID string, kind models.EventKind, offset, limit int) (*models.EventsResponse, error) {
	var out models.EventsResponse
	q := neturl.Values{}
	q.Set("offset", strconv.Itoa(offset))
	q.Set("limit", strconv.Itoa(limit))
	if kind != "" {
		q.Set("kind", string(kind))
	}
	url := serverURL + "/api/v1/journal/sessions/" + neturl.PathEscape(sessionID) + "/events?" + q.Encode()
	if err := apiCall(http.MethodGet, url, nil, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}
