package events

import "fmt"

// MaxBatchBurn caps the number of entries accepted in a single batch
// burn event, mirroring the factory contract limit.
const MaxBatchBurn = 100

// BurnEntry is one (holder, amount) pair inside a batch burn. Amounts
// are decimal strings because token quantities are 128-bit on chain.
type BurnEntry struct {
	From   string `json:"from"`
	Amount string `json:"amount"`
}

// NewTokenCreated builds the envelope emitted when the factory deploys
// and registers a new token.
//
// Data keys: token_address, creator, name, symbol, decimals,
// total_supply, metadata_uri (omitted when empty), tx_hash, ledger.
func NewTokenCreated(tokenAddress, creator, name, symbol string, decimals uint32, totalSupply, metadataURI, txHash string, ledger uint32) Envelope {
	data := map[string]interface{}{
		"token_address": tokenAddress,
		"creator":       creator,
		"name":          name,
		"symbol":        symbol,
		"decimals":      decimals,
		"total_supply":  totalSupply,
		"tx_hash":       txHash,
		"ledger":        ledger,
	}
	if metadataURI != "" {
		data["metadata_uri"] = metadataURI
	}
	return NewEnvelope(EventTokenCreated, data)
}

// NewTokenSelfBurn builds the envelope for a holder burning their own
// balance.
//
// Data keys: token_address, from, amount, tx_hash, ledger.
func NewTokenSelfBurn(tokenAddress, from, amount, txHash string, ledger uint32) Envelope {
	return NewEnvelope(EventTokenSelfBurn, map[string]interface{}{
		"token_address": tokenAddress,
		"from":          from,
		"amount":        amount,
		"tx_hash":       txHash,
		"ledger":        ledger,
	})
}

// NewTokenAdminBurn builds the envelope for an admin burning from a
// holder's balance.
//
// Data keys: token_address, admin, from, amount, tx_hash, ledger.
func NewTokenAdminBurn(tokenAddress, admin, from, amount, txHash string, ledger uint32) Envelope {
	return NewEnvelope(EventTokenAdminBurn, map[string]interface{}{
		"token_address": tokenAddress,
		"admin":         admin,
		"from":          from,
		"amount":        amount,
		"tx_hash":       txHash,
		"ledger":        ledger,
	})
}

// NewTokenBatchBurn builds the envelope for an admin burning from up to
// MaxBatchBurn holders in one transaction.
//
// Data keys: token_address, admin, burns, count, total_amount, tx_hash,
// ledger.
func NewTokenBatchBurn(tokenAddress, admin string, burns []BurnEntry, totalAmount, txHash string, ledger uint32) (Envelope, error) {
	if len(burns) == 0 {
		return Envelope{}, fmt.Errorf("batch burn requires at least one entry")
	}
	if len(burns) > MaxBatchBurn {
		return Envelope{}, fmt.Errorf("batch burn exceeds %d entries: got %d", MaxBatchBurn, len(burns))
	}
	return NewEnvelope(EventTokenBatchBurn, map[string]interface{}{
		"token_address": tokenAddress,
		"admin":         admin,
		"burns":         burns,
		"count":         len(burns),
		"total_amount":  totalAmount,
		"tx_hash":       txHash,
		"ledger":        ledger,
	}), nil
}

// NewTokenClawback builds the envelope for an admin toggling clawback
// on a token.
//
// Data keys: token_address, admin, enabled, tx_hash, ledger.
func NewTokenClawback(tokenAddress, admin string, enabled bool, txHash string, ledger uint32) Envelope {
	return NewEnvelope(EventTokenClawback, map[string]interface{}{
		"token_address": tokenAddress,
		"admin":         admin,
		"enabled":       enabled,
		"tx_hash":       txHash,
		"ledger":        ledger,
	})
}

// NewFactoryPaused builds the envelope for the factory entering the
// paused state.
//
// Data keys: admin, tx_hash, ledger.
func NewFactoryPaused(admin, txHash string, ledger uint32) Envelope {
	return NewEnvelope(EventFactoryPaused, map[string]interface{}{
		"admin":   admin,
		"tx_hash": txHash,
		"ledger":  ledger,
	})
}

// NewFactoryUnpaused builds the envelope for the factory leaving the
// paused state.
//
// Data keys: admin, tx_hash, ledger.
func NewFactoryUnpaused(admin, txHash string, ledger uint32) Envelope {
	return NewEnvelope(EventFactoryUnpaused, map[string]interface{}{
		"admin":   admin,
		"tx_hash": txHash,
		"ledger":  ledger,
	})
}

// NewFeeUpdated builds the envelope for a change to the factory fee
// schedule. Fees are stroop amounts as decimal strings.
//
// Data keys: base_fee, metadata_fee, tx_hash, ledger.
func NewFeeUpdated(baseFee, metadataFee, txHash string, ledger uint32) Envelope {
	return NewEnvelope(EventFeeUpdated, map[string]interface{}{
		"base_fee":     baseFee,
		"metadata_fee": metadataFee,
		"tx_hash":      txHash,
		"ledger":       ledger,
	})
}

// NewAdminTransferred builds the envelope for a factory admin handover.
//
// Data keys: old_admin, new_admin, tx_hash, ledger.
func NewAdminTransferred(oldAdmin, newAdmin, txHash string, ledger uint32) Envelope {
	return NewEnvelope(EventAdminTransferred, map[string]interface{}{
		"old_admin": oldAdmin,
		"new_admin": newAdmin,
		"tx_hash":   txHash,
		"ledger":    ledger,
	})
}

// NewWebhookTest builds the synthetic envelope sent by the manual
// subscription test endpoint.
//
// Data keys: subscription_id, message.
func NewWebhookTest(subscriptionID string) Envelope {
	return NewEnvelope(EventWebhookTest, map[string]interface{}{
		"subscription_id": subscriptionID,
		"message":         "test delivery",
	})
}
