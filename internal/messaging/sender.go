// Package messaging sends outbound WhatsApp messages through the Graph API.
// Connected tenants message from their own number with their own token;
// everyone else falls back to the process-default credential, and the
// source of the token in use is tracked for logging.
package messaging

import (
	"context"
	"fmt"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"

	"github.com/delivio/go-commerce-bot/internal/checkout"
	"github.com/delivio/go-commerce-bot/internal/config"
	"github.com/delivio/go-commerce-bot/internal/domain"
)

// Channel caps, enforced by truncation rather than rejection.
const (
	maxButtons     = 3
	maxButtonTitle = 20
	maxListRows    = 10
	maxRowTitle    = 24
	maxRowDesc     = 72
)

const defaultGraphURL = "https://graph.facebook.com"

// credential is the messaging identity a send goes out under.
type credential struct {
	phoneNumberID string
	token         string
	source        string // "tenant" or "default"
}

// Sender delivers messages via the WhatsApp Business Graph API.
type Sender struct {
	http       *resty.Client
	apiVersion string
	fallback   credential
}

// NewSender builds a Sender using cfg's credential as the process default.
func NewSender(cfg config.WhatsAppConfig) *Sender {
	return &Sender{
		http: resty.New().
			SetBaseURL(defaultGraphURL).
			SetTimeout(cfg.Timeout),
		apiVersion: cfg.APIVersion,
		fallback: credential{
			phoneNumberID: cfg.PhoneNumberID,
			token:         cfg.AccessToken,
			source:        "default",
		},
	}
}

// WithBaseURL points the sender at a different Graph endpoint.
func (s *Sender) WithBaseURL(u string) *Sender {
	s.http.SetBaseURL(u)
	return s
}

// credentials picks the tenant's own messaging identity when it has one.
func (s *Sender) credentials(t *domain.TenantConfig) credential {
	if t.HasCredential() && t.RoutingID != "" {
		return credential{phoneNumberID: t.RoutingID, token: t.AccessToken, source: "tenant"}
	}
	return s.fallback
}

func (s *Sender) send(ctx context.Context, cred credential, body map[string]any) error {
	body["messaging_product"] = "whatsapp"

	var apiErr struct {
		Error struct {
			Message string `json:"message"`
			Code    int    `json:"code"`
		} `json:"error"`
	}
	resp, err := s.http.R().
		SetContext(ctx).
		SetAuthToken(cred.token).
		SetBody(body).
		SetError(&apiErr).
		Post(fmt.Sprintf("/%s/%s/messages", s.apiVersion, cred.phoneNumberID))
	if err != nil {
		return fmt.Errorf("messaging: send: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("messaging: graph api %d: %s", resp.StatusCode(), apiErr.Error.Message)
	}
	log.Debug().
		Str("phone_number_id", cred.phoneNumberID).
		Str("token_source", cred.source).
		Msg("message sent")
	return nil
}

// SendText delivers a plain text message.
func (s *Sender) SendText(ctx context.Context, tenant *domain.TenantConfig, to, text string) error {
	return s.send(ctx, s.credentials(tenant), map[string]any{
		"to":   to,
		"type": "text",
		"text": map[string]any{"body": text},
	})
}

// SendButtons delivers a reply-button message. At most three buttons go
// out; titles are cut to the channel's 20-character cap.
func (s *Sender) SendButtons(ctx context.Context, tenant *domain.TenantConfig, to, text string, buttons []checkout.ReplyButton) error {
	if len(buttons) > maxButtons {
		buttons = buttons[:maxButtons]
	}
	btns := make([]map[string]any, 0, len(buttons))
	for _, b := range buttons {
		btns = append(btns, map[string]any{
			"type": "reply",
			"reply": map[string]any{
				"id":    b.ID,
				"title": truncate(b.Title, maxButtonTitle),
			},
		})
	}
	return s.send(ctx, s.credentials(tenant), map[string]any{
		"to":   to,
		"type": "interactive",
		"interactive": map[string]any{
			"type":   "button",
			"body":   map[string]any{"text": text},
			"action": map[string]any{"buttons": btns},
		},
	})
}

// SendList delivers an interactive list picker, capped at ten rows with the
// channel's title and description limits applied.
func (s *Sender) SendList(ctx context.Context, tenant *domain.TenantConfig, to, text string, list *checkout.ReplyList) error {
	rows := list.Rows
	if len(rows) > maxListRows {
		rows = rows[:maxListRows]
	}
	items := make([]map[string]any, 0, len(rows))
	for _, r := range rows {
		row := map[string]any{
			"id":    r.ID,
			"title": truncate(r.Title, maxRowTitle),
		}
		if r.Description != "" {
			row["description"] = truncate(r.Description, maxRowDesc)
		}
		items = append(items, row)
	}
	return s.send(ctx, s.credentials(tenant), map[string]any{
		"to":   to,
		"type": "interactive",
		"interactive": map[string]any{
			"type": "list",
			"body": map[string]any{"text": text},
			"action": map[string]any{
				"button":   truncate(list.Button, maxButtonTitle),
				"sections": []map[string]any{{"rows": items}},
			},
		},
	})
}

// SendCTALink delivers a call-to-action URL button, used for the hosted
// payment link.
func (s *Sender) SendCTALink(ctx context.Context, tenant *domain.TenantConfig, to, text, linkText, url string) error {
	return s.send(ctx, s.credentials(tenant), map[string]any{
		"to":   to,
		"type": "interactive",
		"interactive": map[string]any{
			"type": "cta_url",
			"body": map[string]any{"text": text},
			"action": map[string]any{
				"name": "cta_url",
				"parameters": map[string]any{
					"display_text": truncate(linkText, maxButtonTitle),
					"url":          url,
				},
			},
		},
	})
}

// SendProductList delivers a multi-product message from the tenant's
// catalog.
func (s *Sender) SendProductList(ctx context.Context, tenant *domain.TenantConfig, to, header, text string, productIDs []string) error {
	if tenant == nil || tenant.CatalogID == "" {
		return fmt.Errorf("messaging: tenant has no catalog")
	}
	if len(productIDs) > maxListRows {
		productIDs = productIDs[:maxListRows]
	}
	items := make([]map[string]any, 0, len(productIDs))
	for _, id := range productIDs {
		items = append(items, map[string]any{"product_retailer_id": id})
	}
	return s.send(ctx, s.credentials(tenant), map[string]any{
		"to":   to,
		"type": "interactive",
		"interactive": map[string]any{
			"type":   "product_list",
			"header": map[string]any{"type": "text", "text": truncate(header, maxRowTitle)},
			"body":   map[string]any{"text": text},
			"action": map[string]any{
				"catalog_id": tenant.CatalogID,
				"sections":   []map[string]any{{"title": "Menu", "product_items": items}},
			},
		},
	})
}

// SendReply renders an engine reply into the channel shape it calls for:
// CTA link, list, buttons, or plain text.
func (s *Sender) SendReply(ctx context.Context, tenant *domain.TenantConfig, to string, r checkout.Reply) error {
	switch {
	case r.LinkURL != "":
		if err := s.SendCTALink(ctx, tenant, to, r.Text, r.LinkText, r.LinkURL); err != nil {
			return err
		}
		if len(r.Buttons) > 0 {
			return s.SendButtons(ctx, tenant, to, "Done paying?", r.Buttons)
		}
		return nil
	case r.List != nil:
		return s.SendList(ctx, tenant, to, r.Text, r.List)
	case len(r.Buttons) > 0:
		return s.SendButtons(ctx, tenant, to, r.Text, r.Buttons)
	default:
		return s.SendText(ctx, tenant, to, r.Text)
	}
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-1]) + "…"
}
