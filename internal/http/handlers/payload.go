package handlers

// Wire types for the Meta webhook payload and their translation into the
// engine's typed events. Only message notifications are consumed; status
// updates and anything unrecognized are skipped without failing the batch.

import (
	"github.com/delivio/go-commerce-bot/internal/checkout"
	"github.com/delivio/go-commerce-bot/internal/domain"
	"github.com/delivio/go-commerce-bot/internal/services"
)

type webhookPayload struct {
	Object string  `json:"object"`
	Entry  []entry `json:"entry"`
}

type entry struct {
	ID      string   `json:"id"`
	Changes []change `json:"changes"`
}

type change struct {
	Field string      `json:"field"`
	Value changeValue `json:"value"`
}

type changeValue struct {
	Metadata struct {
		DisplayPhoneNumber string `json:"display_phone_number"`
		PhoneNumberID      string `json:"phone_number_id"`
	} `json:"metadata"`
	Contacts []contact `json:"contacts"`
	Messages []message `json:"messages"`
}

type contact struct {
	WaID    string `json:"wa_id"`
	Profile struct {
		Name string `json:"name"`
	} `json:"profile"`
}

type message struct {
	From string `json:"from"`
	ID   string `json:"id"`
	Type string `json:"type"`

	Text *struct {
		Body string `json:"body"`
	} `json:"text,omitempty"`

	Interactive *struct {
		Type        string `json:"type"`
		ButtonReply *struct {
			ID    string `json:"id"`
			Title string `json:"title"`
		} `json:"button_reply,omitempty"`
		ListReply *struct {
			ID    string `json:"id"`
			Title string `json:"title"`
		} `json:"list_reply,omitempty"`
	} `json:"interactive,omitempty"`

	Button *struct {
		Payload string `json:"payload"`
		Text    string `json:"text"`
	} `json:"button,omitempty"`

	Location *struct {
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
		Name      string  `json:"name"`
		Address   string  `json:"address"`
	} `json:"location,omitempty"`

	Order *struct {
		CatalogID    string `json:"catalog_id"`
		ProductItems []struct {
			ProductRetailerID string  `json:"product_retailer_id"`
			Quantity          int     `json:"quantity"`
			ItemPrice         float64 `json:"item_price"`
			Currency          string  `json:"currency"`
		} `json:"product_items"`
	} `json:"order,omitempty"`
}

// decodeMessages flattens a webhook payload into processable messages.
func decodeMessages(p *webhookPayload) []services.InboundMessage {
	var out []services.InboundMessage
	for _, e := range p.Entry {
		for _, ch := range e.Changes {
			v := ch.Value
			names := make(map[string]string, len(v.Contacts))
			for _, c := range v.Contacts {
				names[c.WaID] = c.Profile.Name
			}
			for _, m := range v.Messages {
				ev, kind := translate(m)
				if ev == nil {
					continue
				}
				out = append(out, services.InboundMessage{
					RoutingID:     v.Metadata.PhoneNumberID,
					DisplayNumber: v.Metadata.DisplayPhoneNumber,
					SenderID:      m.From,
					SenderName:    names[m.From],
					Kind:          kind,
					Event:         ev,
				})
			}
		}
	}
	return out
}

// translate maps one wire message onto the engine's event union. A nil
// event means the message kind is not consumed here.
func translate(m message) (checkout.Event, string) {
	switch m.Type {
	case "text":
		if m.Text == nil {
			return nil, ""
		}
		return checkout.Text{Body: m.Text.Body}, "text"

	case "interactive":
		if m.Interactive == nil {
			return nil, ""
		}
		if br := m.Interactive.ButtonReply; br != nil {
			return checkout.Button{ID: br.ID, Title: br.Title}, "button"
		}
		if lr := m.Interactive.ListReply; lr != nil {
			return checkout.ListItem{ID: lr.ID, Title: lr.Title}, "list"
		}
		return nil, ""

	case "button":
		// Template quick-reply; the payload carries the mapped id.
		if m.Button == nil {
			return nil, ""
		}
		return checkout.Button{ID: m.Button.Payload, Title: m.Button.Text}, "button"

	case "location":
		if m.Location == nil {
			return nil, ""
		}
		text := m.Location.Address
		if m.Location.Name != "" && text == "" {
			text = m.Location.Name
		}
		return checkout.Location{
			Latitude:    m.Location.Latitude,
			Longitude:   m.Location.Longitude,
			AddressText: text,
		}, "location"

	case "order":
		if m.Order == nil {
			return nil, ""
		}
		items := make([]domain.CartLineItem, 0, len(m.Order.ProductItems))
		for _, it := range m.Order.ProductItems {
			items = append(items, domain.CartLineItem{
				ProductID: it.ProductRetailerID,
				Quantity:  it.Quantity,
				UnitPrice: it.ItemPrice,
			})
		}
		return checkout.NativeCartOrder{Items: items, CatalogID: m.Order.CatalogID}, "order"
	}
	return nil, ""
}
