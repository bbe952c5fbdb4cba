package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/crowdmind/crowdmind/decision"
	"github.com/crowdmind/crowdmind/store"
	"github.com/crowdmind/crowdmind/types"
)

type createProposalRequest struct {
	Title        string           `json:"title" binding:"required"`
	Description  string           `json:"description"`
	ActionType   types.ActionType `json:"actionType" binding:"required"`
	ActionParams json.RawMessage  `json:"actionParams" binding:"required"`
	GoalAmount   decimal.Decimal  `json:"goalAmount" binding:"required"`
	Deadline     *time.Time       `json:"deadline"`
}

type contributeRequest struct {
	Chain        types.ChainType `json:"chain" binding:"required"`
	Amount       decimal.Decimal `json:"amount" binding:"required"`
	PayerAddress string          `json:"payerAddress" binding:"required"`
}

type verifyRequest struct {
	Chain           types.ChainType `json:"chain" binding:"required"`
	TransactionHash string          `json:"transactionHash" binding:"required"`
	Amount          decimal.Decimal `json:"amount" binding:"required"`
	PayerAddress    string          `json:"payerAddress" binding:"required"`
}

func (s *Server) listProposals(c *gin.Context) {
	var filter store.ProposalFilter
	if status := c.Query("status"); status != "" {
		filter.Statuses = []types.ProposalStatus{types.ProposalStatus(status)}
	}
	proposals, err := s.store.ListProposals(filter)
	if err != nil {
		s.fail(c, err)
		return
	}
	if proposals == nil {
		proposals = []*types.Proposal{}
	}
	c.JSON(http.StatusOK, gin.H{"proposals": proposals})
}

func (s *Server) createProposal(c *gin.Context) {
	var req createProposalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !req.GoalAmount.IsPositive() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "goalAmount must be positive"})
		return
	}
	if _, err := types.ParseActionParams(req.ActionType, string(req.ActionParams)); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	proposal := &types.Proposal{
		Title:        req.Title,
		Description:  req.Description,
		ActionType:   req.ActionType,
		ActionParams: string(req.ActionParams),
		GoalAmount:   req.GoalAmount,
		Status:       types.StatusActive,
		Deadline:     req.Deadline,
	}
	if err := s.store.CreateProposal(proposal); err != nil {
		s.fail(c, err)
		return
	}
	s.log.Info("proposal created", map[string]any{"proposal_id": proposal.ID, "action": proposal.ActionType.String()})
	c.JSON(http.StatusCreated, proposal)
}

func (s *Server) getProposal(c *gin.Context) {
	proposal, err := s.store.FindProposal(c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	contributors, err := s.store.DistinctPayerCount(proposal.ID)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"proposal":     proposal,
		"fundingRatio": proposal.FundingRatio(),
		"contributors": contributors,
	})
}

// contribute is the x402-gated contribution endpoint. Without a valid
// payment proof the response is a 402 challenge with payment
// instructions; with one, the contribution is credited.
func (s *Server) contribute(c *gin.Context) {
	proposal, err := s.store.FindProposal(c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	if proposal.Status != types.StatusActive {
		c.JSON(http.StatusConflict, gin.H{"error": "Proposal is not accepting contributions"})
		return
	}

	var req contributeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !req.Chain.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid payment chain"})
		return
	}
	if !req.Amount.IsPositive() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "amount must be positive"})
		return
	}

	proof, ok := s.proto.Gate(c, proposal.ID, req.Chain, req.Amount)
	if !ok {
		return
	}

	payment, updated, err := s.store.ApplyConfirmedPayment(&types.Payment{
		ProposalID:      proposal.ID,
		Chain:           proof.Chain,
		Amount:          req.Amount,
		PayerAddress:    req.PayerAddress,
		TransactionHash: proof.TransactionHash,
	})
	if err != nil {
		s.fail(c, err)
		return
	}

	s.log.Info("contribution recorded", map[string]any{
		"proposal_id": proposal.ID,
		"amount":      req.Amount.String(),
		"chain":       proof.Chain.String(),
		"tx_hash":     proof.TransactionHash,
	})
	c.JSON(http.StatusOK, gin.H{"payment": payment, "proposal": updated})
}

// verifyPayment verifies an already-submitted transaction and credits
// the proposal. Replayed transaction hashes return the original payment
// without double-crediting.
func (s *Server) verifyPayment(c *gin.Context) {
	proposal, err := s.store.FindProposal(c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}

	var req verifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result := s.proto.VerifyPayment(c.Request.Context(), req.Chain, req.TransactionHash, req.Amount, "")
	if !result.Verified {
		c.JSON(http.StatusPaymentRequired, gin.H{"verified": false, "error": result.Error})
		return
	}

	payment, updated, err := s.store.ApplyConfirmedPayment(&types.Payment{
		ProposalID:      proposal.ID,
		Chain:           req.Chain,
		Amount:          req.Amount,
		PayerAddress:    req.PayerAddress,
		TransactionHash: req.TransactionHash,
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"verified": true, "payment": payment, "proposal": updated})
}

func (s *Server) getDecision(c *gin.Context) {
	result, err := s.executor.Decide(c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) getAnalysis(c *gin.Context) {
	proposal, err := s.store.FindProposal(c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, s.maker.Analyze(proposal))
}

func (s *Server) executeProposal(c *gin.Context) {
	result := s.executor.Execute(c.Request.Context(), c.Param("id"))
	status := http.StatusOK
	if !result.Success {
		status = http.StatusUnprocessableEntity
	}
	c.JSON(status, result)
}

func (s *Server) listTransactions(c *gin.Context) {
	transactions, err := s.store.ListTransactions(c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	if transactions == nil {
		transactions = []types.Transaction{}
	}
	c.JSON(http.StatusOK, gin.H{"transactions": transactions})
}

func (s *Server) agentStatus(c *gin.Context) {
	wallets := map[string]any{}
	for _, chain := range s.clients.Chains() {
		client, err := s.clients.Get(chain)
		if err != nil {
			continue
		}
		entry := gin.H{"address": client.GetWalletAddress()}
		if balance, err := client.GetTokenBalance(c.Request.Context()); err == nil {
			entry["usdcBalance"] = balance
		}
		wallets[chain.String()] = entry
	}
	c.JSON(http.StatusOK, gin.H{
		"autoExecute": s.cfg.Agent.AutoExecute,
		"demo":        s.cfg.Demo,
		"wallets":     wallets,
	})
}

func (s *Server) recommendations(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"recommendations": decision.Recommendations()})
}

// fail maps domain errors to HTTP statuses.
func (s *Server) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Proposal not found"})
	case errors.Is(err, store.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		var agentErr *types.AgentError
		if errors.As(err, &agentErr) {
			c.JSON(http.StatusBadRequest, gin.H{"error": agentErr.Message, "code": agentErr.Code})
			return
		}
		s.log.Error("request failed", map[string]any{"path": c.FullPath(), "error": err.Error()})
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
