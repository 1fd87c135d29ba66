// Package gemini implements llm.MenuStructurer on the Gemini
// generateContent REST API.
package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tablecraft/menu-digitizer/internal/common"
	"github.com/tablecraft/menu-digitizer/internal/llm"
)

// Structure sends extracted menu text through the structuring contract and
// returns the raw model output. The structuring request runs at the low
// extraction temperature; when its output parses and contains dishes with
// neither description field set, a second best-effort request at the higher
// suggestion temperature fills ai_suggested_description only. The second
// pass never fails the stage.
func (c *Client) Structure(ctx context.Context, rawText string) (string, error) {
	if c.cfg.APIKey == "" {
		return "", common.StructuringError("missing GEMINI_API_KEY", nil)
	}

	rid := uuid.New().String()
	start := time.Now()
	c.log.Info("llm.structure.start",
		"req_id", rid,
		"model", c.cfg.Model,
		"temp", c.cfg.ExtractTemperature,
		"text_len", len(rawText),
	)

	sys := llm.BuildSystemPrompt() + "\n\nJSON Schema:\n" + mustJSON(llm.BuildMenuJSONSchema())
	user := llm.BuildUserPrompt(rawText)

	blob, err := c.generate(ctx, sys, user, c.cfg.ExtractTemperature)
	if err != nil {
		c.log.Error("llm.structure.failed", "req_id", rid, "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		return "", err
	}

	blob = c.suggestDescriptions(ctx, rid, blob)

	c.log.Info("llm.structure.ok", "req_id", rid, "bytes", len(blob), "elapsed_ms", time.Since(start).Milliseconds())
	return blob, nil
}

// suggestDescriptions runs the creative second pass. Any failure leaves the
// first response untouched so the reliable fields never drift.
func (c *Client) suggestDescriptions(ctx context.Context, rid, blob string) string {
	var menu llm.StructuredMenu
	if err := json.Unmarshal([]byte(llm.StripCodeFences(blob)), &menu); err != nil {
		// Not parseable here; the sanitizer surfaces the real error.
		return blob
	}

	var bare []string
	for _, cat := range menu.Menu {
		for _, d := range cat.Dishes {
			if d.Description == nil && d.AISuggestedDescription == nil && d.Name != "" {
				bare = append(bare, d.Name)
			}
		}
	}
	if len(bare) == 0 {
		return blob
	}

	out, err := c.generate(ctx, llm.BuildSystemPrompt(), llm.BuildSuggestionPrompt(bare), c.cfg.SuggestionTemperature)
	if err != nil {
		c.log.Warn("llm.structure.suggest_skipped", "req_id", rid, "dishes", len(bare), "error", err)
		return blob
	}

	var sugg struct {
		Suggestions map[string]string `json:"suggestions"`
	}
	if err := json.Unmarshal([]byte(llm.StripCodeFences(out)), &sugg.Suggestions); err != nil {
		// tolerate either {"suggestions": {...}} or a bare name->text object
		if err2 := json.Unmarshal([]byte(llm.StripCodeFences(out)), &sugg); err2 != nil || sugg.Suggestions == nil {
			c.log.Warn("llm.structure.suggest_unparseable", "req_id", rid, "error", err)
			return blob
		}
	}

	merged := 0
	for ci := range menu.Menu {
		for di := range menu.Menu[ci].Dishes {
			d := &menu.Menu[ci].Dishes[di]
			if d.Description != nil || d.AISuggestedDescription != nil {
				continue
			}
			if s, ok := sugg.Suggestions[d.Name]; ok && strings.TrimSpace(s) != "" {
				text := strings.TrimSpace(s)
				d.AISuggestedDescription = &text
				merged++
			}
		}
	}
	if merged == 0 {
		return blob
	}

	b, err := json.Marshal(menu)
	if err != nil {
		return blob
	}
	c.log.Info("llm.structure.suggest_merged", "req_id", rid, "dishes", merged)
	return string(b)
}

// generate performs one generateContent call and returns the first
// candidate's text.
func (c *Client) generate(ctx context.Context, system, user string, temperature float32) (string, error) {
	payload := map[string]any{
		"system_instruction": map[string]any{
			"parts": []map[string]string{{"text": system}},
		},
		"contents": []map[string]any{
			{
				"role":  "user",
				"parts": []map[string]string{{"text": user}},
			},
		},
		"generationConfig": map[string]any{
			"temperature":     temperature,
			"maxOutputTokens": c.cfg.MaxOutputTokens,
		},
	}

	url := fmt.Sprintf("%s/models/%s:generateContent", strings.TrimRight(c.cfg.BaseURL, "/"), c.cfg.Model)
	headers := map[string]string{"x-goog-api-key": c.cfg.APIKey}

	raw, status, err := llm.SendJSON(ctx, c.http, url, payload, headers, c.log)
	if err != nil {
		if ctx.Err() != nil {
			return "", common.TimeoutError("structuring call timed out", ctx.Err())
		}
		if status != 0 {
			return "", common.StructuringError(fmt.Sprintf("gemini api error (status %d)", status), err)
		}
		return "", common.StructuringError("gemini unreachable", err)
	}

	var result struct {
		Candidates []struct {
			Content struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"content"`
		} `json:"candidates"`
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		return "", common.StructuringError("decode gemini response", err)
	}
	if len(result.Candidates) == 0 || len(result.Candidates[0].Content.Parts) == 0 {
		return "", common.StructuringError("empty gemini response", nil)
	}

	var b strings.Builder
	for _, p := range result.Candidates[0].Content.Parts {
		b.WriteString(p.Text)
	}
	return b.String(), nil
}

func mustJSON(v any) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}
