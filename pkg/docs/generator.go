package docs

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/soroforge/soroforge/pkg/events"
	"github.com/soroforge/soroforge/pkg/webhooks"
)

// Event categories used to group the catalog
const (
	CategoryToken   = "token"
	CategoryFactory = "factory"
	CategoryTest    = "test"
)

// Catalog is the generated reference for every event a subscription can
// receive, including the delivery envelope contract.
type Catalog struct {
	Title       string      `json:"title"`
	Description string      `json:"description"`
	Delivery    DeliveryDoc `json:"delivery"`
	Events      []*EventDoc `json:"events"`
}

// DeliveryDoc documents the HTTP contract of a webhook delivery
type DeliveryDoc struct {
	ContentType     string       `json:"contentType"`
	SignatureScheme string       `json:"signatureScheme"`
	Headers         []*HeaderDoc `json:"headers"`
}

// HeaderDoc documents one delivery request header
type HeaderDoc struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// EventDoc documents a single event type
type EventDoc struct {
	Name        string          `json:"name"`
	Category    string          `json:"category"`
	Description string          `json:"description"`
	Fields      []*FieldDoc     `json:"fields"`
	Example     json.RawMessage `json:"example"`
}

// FieldDoc documents one key in the event data object. Type names the
// JSON type as it appears on the wire.
type FieldDoc struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Description string `json:"description"`
	Optional    bool   `json:"optional,omitempty"`
}

// Fixed identifiers keep the generated examples stable across runs
const (
	exampleEventID = "evt_7d65cb43-1f9c-4a5e-8e1d-2d6a3f0c9b8e"

	sampleToken    = "CBISDTRTJYB4UALZ7I6M752CHOHDEOSEEGWIROWUY2BWA5XYZ76JZUJP"
	sampleCreator  = "GADXRF3PHXR6LU2KXOPNA447FMYNJURFK3MM6MMPJUG6VCSXOB7YBMNY"
	sampleAdmin    = "GD27C6KPK5EZSVN7XK5JV6DCSNEYF6OUPR7E27PCPAQUL2CAUYZFFHQ3"
	sampleHolder   = "GBBHY2GBDUW3IJFJFEZ7UGO4ENWMHHGFTVNCAJLXSCX3D3PMAJMUVR7I"
	sampleHolder2  = "GCP4O2FYNLRH2DBBA4D7YR75QRZ22X5IRE5S34K3O7QM5FBFUMJZCU74"
	sampleOldAdmin = "GAVBZOCLE7WDDSI25Z4ABXAMPERDRNNLMVHRGKFQYDKY4P2USW2SWA5A"

	sampleTxHash  = "9f90d4451bd260c34a2cdf6547b9630df11868841b4eac2b2884e89c0d2528f0"
	sampleTxHash2 = "a6754914875404a413e492d8f86a7a436b74a7350da9538b23a06128ac5ce5a2"

	sampleMetadataURI    = "ipfs://bafybeigdyrzt5sfp7udm7hu76uh7y26nf3efuylqabf3oclgtqy55fbzdi"
	sampleSubscriptionID = "sub_9d2f7b8a-4c31-4e8f-b34d-4f4d9f2a1c7e"
)

var exampleTime = time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)

// Generator builds the event catalog. Example payloads go through the
// real envelope builders, so a builder change shows up in the docs on
// the next generation instead of drifting silently.
type Generator struct{}

// NewGenerator creates a new catalog generator
func NewGenerator() *Generator {
	return &Generator{}
}

// Generate builds the full catalog
func (g *Generator) Generate() (*Catalog, error) {
	eventDocs, err := g.eventDocs()
	if err != nil {
		return nil, err
	}

	return &Catalog{
		Title: "SoroForge Webhook Events",
		Description: "Every event a webhook subscription can receive. Deliveries are " +
			"HTTP POSTs carrying a signed JSON envelope; the data object holds the " +
			"event-specific fields listed per event below. Token and fee amounts are " +
			"decimal strings because on-chain quantities are 128-bit.",
		Delivery: DeliveryDoc{
			ContentType: "application/json",
			SignatureScheme: "HMAC-SHA256 of the raw request body keyed with the subscription " +
				"secret, hex encoded with the " + webhooks.SignaturePrefix + " prefix",
			Headers: []*HeaderDoc{
				{Name: webhooks.HeaderEvent, Description: "Event type, matching the catalog entry name"},
				{Name: webhooks.HeaderEventID, Description: "Envelope id, stable across retries of the same event"},
				{Name: webhooks.HeaderDelivery, Description: "Delivery attempt id, unique per request"},
				{Name: webhooks.HeaderSignature, Description: "Payload signature to verify against the subscription secret"},
			},
		},
		Events: eventDocs,
	}, nil
}

func (g *Generator) eventDocs() ([]*EventDoc, error) {
	batchEnv, err := events.NewTokenBatchBurn(sampleToken, sampleAdmin, []events.BurnEntry{
		{From: sampleHolder, Amount: "1000000000"},
		{From: sampleHolder2, Amount: "500000000"},
	}, "1500000000", sampleTxHash2, 58143750)
	if err != nil {
		return nil, fmt.Errorf("failed to build batch burn example: %w", err)
	}

	docs := []*EventDoc{
		{
			Name:        string(events.EventTokenCreated),
			Category:    CategoryToken,
			Description: "The factory deployed a new token and registered it with the platform.",
			Fields: []*FieldDoc{
				field("token_address", "string", "Contract address of the new token"),
				field("creator", "string", "Account that paid for and owns the deployment"),
				field("name", "string", "Token display name"),
				field("symbol", "string", "Token ticker symbol"),
				field("decimals", "number", "Display decimals"),
				field("total_supply", "string", "Initial supply in base units, as a decimal string"),
				optional("metadata_uri", "string", "Off-chain metadata location; omitted when not set"),
				field("tx_hash", "string", "Hash of the transaction that emitted the event"),
				field("ledger", "number", "Ledger sequence the transaction landed in"),
			},
			Example: exampleJSON(events.NewTokenCreated(sampleToken, sampleCreator,
				"Aurora Credits", "AURC", 7, "1000000000000000", sampleMetadataURI,
				sampleTxHash, 58143627)),
		},
		{
			Name:        string(events.EventTokenSelfBurn),
			Category:    CategoryToken,
			Description: "A holder burned part of their own balance.",
			Fields: []*FieldDoc{
				field("token_address", "string", "Contract address of the token"),
				field("from", "string", "Account whose balance was burned"),
				field("amount", "string", "Burned amount in base units, as a decimal string"),
				field("tx_hash", "string", "Hash of the transaction that emitted the event"),
				field("ledger", "number", "Ledger sequence the transaction landed in"),
			},
			Example: exampleJSON(events.NewTokenSelfBurn(sampleToken, sampleHolder,
				"2500000000", sampleTxHash, 58143702)),
		},
		{
			Name:        string(events.EventTokenAdminBurn),
			Category:    CategoryToken,
			Description: "The token admin burned from a holder's balance.",
			Fields: []*FieldDoc{
				field("token_address", "string", "Contract address of the token"),
				field("admin", "string", "Admin account that signed the burn"),
				field("from", "string", "Account whose balance was burned"),
				field("amount", "string", "Burned amount in base units, as a decimal string"),
				field("tx_hash", "string", "Hash of the transaction that emitted the event"),
				field("ledger", "number", "Ledger sequence the transaction landed in"),
			},
			Example: exampleJSON(events.NewTokenAdminBurn(sampleToken, sampleAdmin,
				sampleHolder, "1000000000", sampleTxHash2, 58143731)),
		},
		{
			Name:     string(events.EventTokenBatchBurn),
			Category: CategoryToken,
			Description: fmt.Sprintf("The token admin burned from up to %d holders in one transaction.",
				events.MaxBatchBurn),
			Fields: []*FieldDoc{
				field("token_address", "string", "Contract address of the token"),
				field("admin", "string", "Admin account that signed the burn"),
				field("burns", "array", "Holder and amount pairs, one object per burn, each with from and amount"),
				field("count", "number", "Number of entries in burns"),
				field("total_amount", "string", "Sum of all burned amounts, as a decimal string"),
				field("tx_hash", "string", "Hash of the transaction that emitted the event"),
				field("ledger", "number", "Ledger sequence the transaction landed in"),
			},
			Example: exampleJSON(batchEnv),
		},
		{
			Name:        string(events.EventTokenClawback),
			Category:    CategoryToken,
			Description: "The token admin toggled the clawback flag.",
			Fields: []*FieldDoc{
				field("token_address", "string", "Contract address of the token"),
				field("admin", "string", "Admin account that signed the change"),
				field("enabled", "boolean", "Whether clawback is now enabled"),
				field("tx_hash", "string", "Hash of the transaction that emitted the event"),
				field("ledger", "number", "Ledger sequence the transaction landed in"),
			},
			Example: exampleJSON(events.NewTokenClawback(sampleToken, sampleAdmin, true,
				sampleTxHash, 58143760)),
		},
		{
			Name:        string(events.EventFactoryPaused),
			Category:    CategoryFactory,
			Description: "The factory was paused; token creation is rejected until it resumes.",
			Fields: []*FieldDoc{
				field("admin", "string", "Factory admin that signed the pause"),
				field("tx_hash", "string", "Hash of the transaction that emitted the event"),
				field("ledger", "number", "Ledger sequence the transaction landed in"),
			},
			Example: exampleJSON(events.NewFactoryPaused(sampleAdmin, sampleTxHash, 58143800)),
		},
		{
			Name:        string(events.EventFactoryUnpaused),
			Category:    CategoryFactory,
			Description: "The factory resumed accepting token creation.",
			Fields: []*FieldDoc{
				field("admin", "string", "Factory admin that signed the resume"),
				field("tx_hash", "string", "Hash of the transaction that emitted the event"),
				field("ledger", "number", "Ledger sequence the transaction landed in"),
			},
			Example: exampleJSON(events.NewFactoryUnpaused(sampleAdmin, sampleTxHash2, 58143825)),
		},
		{
			Name:        string(events.EventFeeUpdated),
			Category:    CategoryFactory,
			Description: "The factory fee schedule changed.",
			Fields: []*FieldDoc{
				field("base_fee", "string", "Token creation fee in stroops, as a decimal string"),
				field("metadata_fee", "string", "Metadata update fee in stroops, as a decimal string"),
				field("tx_hash", "string", "Hash of the transaction that emitted the event"),
				field("ledger", "number", "Ledger sequence the transaction landed in"),
			},
			Example: exampleJSON(events.NewFeeUpdated("50000000", "10000000",
				sampleTxHash, 58143850)),
		},
		{
			Name:        string(events.EventAdminTransferred),
			Category:    CategoryFactory,
			Description: "Factory admin rights moved to a new account.",
			Fields: []*FieldDoc{
				field("old_admin", "string", "Account that held admin rights before the transfer"),
				field("new_admin", "string", "Account that holds admin rights now"),
				field("tx_hash", "string", "Hash of the transaction that emitted the event"),
				field("ledger", "number", "Ledger sequence the transaction landed in"),
			},
			Example: exampleJSON(events.NewAdminTransferred(sampleOldAdmin, sampleAdmin,
				sampleTxHash2, 58143875)),
		},
		{
			Name:     string(events.EventWebhookTest),
			Category: CategoryTest,
			Description: "Synthetic event sent when a subscription owner requests a test " +
				"delivery. Never produced by the chain watcher.",
			Fields: []*FieldDoc{
				field("subscription_id", "string", "Subscription the test was requested for"),
				field("message", "string", "Fixed marker text"),
			},
			Example: exampleJSON(events.NewWebhookTest(sampleSubscriptionID)),
		},
	}

	return docs, nil
}

func field(name, typ, description string) *FieldDoc {
	return &FieldDoc{Name: name, Type: typ, Description: description}
}

func optional(name, typ, description string) *FieldDoc {
	return &FieldDoc{Name: name, Type: typ, Description: description, Optional: true}
}

// exampleJSON renders an envelope with the fixed example id and
// timestamp so catalog output is reproducible.
func exampleJSON(env events.Envelope) json.RawMessage {
	env.ID = exampleEventID
	env.Timestamp = exampleTime
	out, err := json.MarshalIndent(env, "", "  ")
	if err != nil {
		// Envelope data is built from plain values and never fails to
		// marshal; a broken example is still visible in the output.
		return json.RawMessage(fmt.Sprintf("%q", "example unavailable: "+err.Error()))
	}
	return out
}

// Summary returns a one-line description of the catalog
func (c *Catalog) Summary() string {
	return fmt.Sprintf("%s: %d events", c.Title, len(c.Events))
}

// FindEvent finds an event by name, case-insensitively
func (c *Catalog) FindEvent(name string) *EventDoc {
	for _, ev := range c.Events {
		if strings.EqualFold(ev.Name, name) {
			return ev
		}
	}
	return nil
}

// Categories returns the distinct categories in catalog order
func (c *Catalog) Categories() []string {
	var cats []string
	seen := make(map[string]bool)
	for _, ev := range c.Events {
		if !seen[ev.Category] {
			seen[ev.Category] = true
			cats = append(cats, ev.Category)
		}
	}
	return cats
}

// EventsIn returns the events in the given category, in catalog order
func (c *Catalog) EventsIn(category string) []*EventDoc {
	var out []*EventDoc
	for _, ev := range c.Events {
		if ev.Category == category {
			out = append(out, ev)
		}
	}
	return out
}
