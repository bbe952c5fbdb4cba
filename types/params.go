package types

import (
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// DonateParams funds a direct USDC transfer to a recipient.
type DonateParams struct {
	Chain            ChainType `json:"chain" validate:"required"`
	RecipientAddress string    `json:"recipientAddress" validate:"required"`
	Message          string    `json:"message,omitempty"`
}

// BuyTokenParams funds a token purchase through a DEX.
type BuyTokenParams struct {
	Chain       ChainType `json:"chain" validate:"required"`
	TokenMint   string    `json:"tokenMint" validate:"required"`
	SlippageBps int       `json:"slippageBps,omitempty" validate:"gte=0,lte=10000"`
}

// MintNFTParams funds minting a commemorative NFT collection.
type MintNFTParams struct {
	Chain  ChainType `json:"chain" validate:"required"`
	Name   string    `json:"name" validate:"required"`
	Symbol string    `json:"symbol" validate:"required"`
	URI    string    `json:"uri" validate:"required,url"`
}

// DeployTokenParams funds deploying a new token.
type DeployTokenParams struct {
	Chain         ChainType `json:"chain" validate:"required"`
	Name          string    `json:"name" validate:"required"`
	Symbol        string    `json:"symbol" validate:"required"`
	InitialSupply int64     `json:"initialSupply" validate:"gt=0"`
}

// FundComputeParams funds renting compute from a provider.
type FundComputeParams struct {
	Provider string  `json:"provider" validate:"required"`
	Amount   float64 `json:"amount" validate:"gt=0"`
	Duration string  `json:"duration,omitempty"`
}

// JupiterSwapParams funds a token swap via the Jupiter aggregator.
type JupiterSwapParams struct {
	InputMint   string  `json:"inputMint" validate:"required"`
	OutputMint  string  `json:"outputMint" validate:"required"`
	Amount      float64 `json:"amount" validate:"gt=0"`
	SlippageBps int     `json:"slippageBps,omitempty" validate:"gte=0,lte=10000"`
}

// CustomParams is a free-form variant for actions outside the built-in set.
type CustomParams struct {
	Description string         `json:"description" validate:"required"`
	Extra       map[string]any `json:"extra,omitempty"`
}

// ActionParams is the decoded variant record keyed by ActionType.
// Exactly one field is non-nil after a successful ParseActionParams.
type ActionParams struct {
	Donate      *DonateParams
	BuyToken    *BuyTokenParams
	MintNFT     *MintNFTParams
	DeployToken *DeployTokenParams
	FundCompute *FundComputeParams
	JupiterSwap *JupiterSwapParams
	Custom      *CustomParams
}

// Chain returns the target chain of the variant, or "" when the action
// has no chain affinity (compute, swap, custom).
func (p *ActionParams) Chain() ChainType {
	switch {
	case p.Donate != nil:
		return p.Donate.Chain
	case p.BuyToken != nil:
		return p.BuyToken.Chain
	case p.MintNFT != nil:
		return p.MintNFT.Chain
	case p.DeployToken != nil:
		return p.DeployToken.Chain
	}
	return ""
}

// ParseActionParams decodes and validates the JSON variant for the given
// action type. The unsupported arm is a normal error case, not a panic.
func ParseActionParams(action ActionType, raw string) (*ActionParams, error) {
	decode := func(dst any) error {
		if err := json.Unmarshal([]byte(raw), dst); err != nil {
			return NewAgentError(ErrInvalidParams, fmt.Sprintf("failed to parse action params: %v", err))
		}
		if err := validate.Struct(dst); err != nil {
			return NewAgentError(ErrInvalidParams, fmt.Sprintf("action params validation failed: %v", err))
		}
		return nil
	}

	switch action {
	case ActionDonate:
		p := &DonateParams{}
		if err := decode(p); err != nil {
			return nil, err
		}
		return &ActionParams{Donate: p}, nil
	case ActionBuyToken:
		p := &BuyTokenParams{}
		if err := decode(p); err != nil {
			return nil, err
		}
		return &ActionParams{BuyToken: p}, nil
	case ActionMintNFT:
		p := &MintNFTParams{}
		if err := decode(p); err != nil {
			return nil, err
		}
		return &ActionParams{MintNFT: p}, nil
	case ActionDeployToken:
		p := &DeployTokenParams{}
		if err := decode(p); err != nil {
			return nil, err
		}
		return &ActionParams{DeployToken: p}, nil
	case ActionFundCompute:
		p := &FundComputeParams{}
		if err := decode(p); err != nil {
			return nil, err
		}
		return &ActionParams{FundCompute: p}, nil
	case ActionJupiterSwap:
		p := &JupiterSwapParams{}
		if err := decode(p); err != nil {
			return nil, err
		}
		return &ActionParams{JupiterSwap: p}, nil
	case ActionCustom:
		p := &CustomParams{}
		if err := decode(p); err != nil {
			return nil, err
		}
		return &ActionParams{Custom: p}, nil
	default:
		return nil, NewAgentError(ErrUnsupportedAction, fmt.Sprintf("unsupported action type: %s", action))
	}
}
