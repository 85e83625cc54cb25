package checkout

import "github.com/delivio/go-commerce-bot/internal/domain"

// Event is one inbound conversation event, already decoded from the
// transport. The union is closed: every kind the engine can react to is a
// type in this file, and anything else never reaches the engine.
type Event interface {
	isEvent()
}

// Text is a free-text message. Outside of the typed-address step it gets
// the menu reply; there is no NLU layer.
type Text struct {
	Body string
}

// Button is an interactive button tap.
type Button struct {
	ID    string
	Title string
}

// ListItem is an interactive list row selection.
type ListItem struct {
	ID    string
	Title string
}

// Location is a shared location pin, optionally with a free-text address.
type Location struct {
	Latitude    float64
	Longitude   float64
	AddressText string
}

// NativeCartOrder is a cart assembled in the chat surface's own UI and
// submitted as a single event.
type NativeCartOrder struct {
	Items     []domain.CartLineItem
	CatalogID string
}

func (Text) isEvent()            {}
func (Button) isEvent()          {}
func (ListItem) isEvent()        {}
func (Location) isEvent()        {}
func (NativeCartOrder) isEvent() {}
