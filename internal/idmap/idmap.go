// Package idmap translates MetaNetX metabolite ids of predicted pathways into
// BiGG ids through the external id-mapping service.
package idmap

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-logr/logr"

	"github.com/example/metabolic-ninja/api-go/internal/model"
)

// compartmentSuffix is appended to mapped ids, which are always placed in the
// cytosol.
const compartmentSuffix = "_c"

type Client struct {
	url    string
	http   *http.Client
	logger logr.Logger
}

// New returns a client posting to url. An empty url disables mapping.
func New(url string, httpClient *http.Client, logger logr.Logger) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{url: strings.TrimSpace(url), http: httpClient, logger: logger.WithName("idmap")}
}

type lookupRequest struct {
	IDs    []string `json:"ids"`
	DBFrom string   `json:"dbFrom"`
	DBTo   string   `json:"dbTo"`
	Type   string   `json:"type"`
}

type lookupResponse struct {
	IDs map[string][]string `json:"ids"`
}

// Lookup asks the service for the BiGG ids of the given MetaNetX metabolite
// ids. Ids the service does not know are absent from the result.
func (c *Client) Lookup(ctx context.Context, ids []string) (map[string][]string, error) {
	data, err := json.Marshal(lookupRequest{IDs: ids, DBFrom: "mnx", DBTo: "bigg", Type: "Metabolite"})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal id mapping request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to create id mapping request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call id mapper %s: %w", c.url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("id mapper returned non-200 status: %d %s, body: %s", resp.StatusCode, resp.Status, strings.TrimSpace(string(body)))
	}

	var out lookupResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode id mapping response: %w", err)
	}
	return out.IDs, nil
}

// MapPathway returns a copy of raw in which every metabolite id known to the
// service is replaced by its first BiGG id plus the cytosol suffix. raw is
// never modified. If the service is not configured or fails, the copy keeps
// the original ids.
func (c *Client) MapPathway(ctx context.Context, raw model.RawPathway) model.RawPathway {
	out := clonePathway(raw)
	if c == nil || c.url == "" {
		return out
	}

	ids := metaboliteIDs(out)
	if len(ids) == 0 {
		return out
	}
	mapping, err := c.Lookup(ctx, ids)
	if err != nil {
		c.logger.Error(err, "Id mapping failed, keeping original metabolite ids")
		return out
	}

	for i := range out.Reactions {
		for j := range out.Reactions[i].Metabolites {
			p := &out.Reactions[i].Metabolites[j]
			if bigg := mapping[p.ID]; len(bigg) > 0 {
				p.ID = bigg[0] + compartmentSuffix
			}
		}
	}
	return out
}

func metaboliteIDs(raw model.RawPathway) []string {
	seen := make(map[string]struct{})
	var ids []string
	for _, r := range raw.Reactions {
		for _, p := range r.Metabolites {
			if _, ok := seen[p.ID]; ok {
				continue
			}
			seen[p.ID] = struct{}{}
			ids = append(ids, p.ID)
		}
	}
	return ids
}

func clonePathway(raw model.RawPathway) model.RawPathway {
	out := model.RawPathway{Reactions: make([]model.Reaction, len(raw.Reactions))}
	for i, r := range raw.Reactions {
		r.Metabolites = append([]model.Participant(nil), r.Metabolites...)
		out.Reactions[i] = r
	}
	return out
}
