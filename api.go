package btcvault

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/asaskevich/govalidator"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/rs/cors"
	"github.com/spf13/cast"
	"github.com/twitchtv/twirp"
)

func (s *Server) Handler() http.Handler {
	m := chi.NewMux()
	m.Use(middleware.Recoverer)
	m.Use(middleware.RealIP)
	m.Use(middleware.Logger)
	m.Use(middleware.Heartbeat("/hc"))
	m.Use(cors.AllowAll().Handler)
	m.Use(handleAuth(s.cfg.Issuer))

	m.Post("/vaults", s.createVault)
	m.Get("/vaults/{vault}", s.getVault)
	m.Post("/vaults/{vault}/withdrawals", s.createWithdrawal)
	m.Post("/vaults/{vault}/proposals", s.createProposal)
	m.Get("/vaults/{vault}/proposals", s.listProposals)
	m.Post("/vaults/{vault}/proposals/{proposal}/votes", s.createVote)

	return m
}

func renderJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(200)

	_ = json.NewEncoder(w).Encode(v)
}

// renderErr translates core decision errors to twirp codes. Every core
// failure is terminal for the request; nothing here is retryable.
func renderErr(w http.ResponseWriter, err error) {
	var (
		validation *ValidationError
		balance    *InsufficientBalanceError
		quorum     *InsufficientQuorumError
		locked     *WithdrawalLockedError
	)

	switch {
	case errors.As(err, &validation):
		err = twirp.InvalidArgument.Error(validation.Error())
	case errors.As(err, &balance):
		err = twirp.FailedPrecondition.Error(balance.Error())
	case errors.As(err, &quorum):
		err = twirp.PermissionDenied.Error(quorum.Error()).
			WithMeta("signer_share", cast.ToString(quorum.SignerShare)).
			WithMeta("required", cast.ToString(quorum.Required))
	case errors.As(err, &locked):
		err = twirp.FailedPrecondition.Error(locked.Error()).
			WithMeta("remaining_blocks", cast.ToString(locked.RemainingBlocks))
	case errors.Is(err, ErrVaultNotFound), errors.Is(err, ErrProposalNotFound):
		err = twirp.NotFound.Error(err.Error())
	case errors.Is(err, ErrInvalidAmount):
		err = twirp.InvalidArgument.Error(err.Error())
	case errors.Is(err, ErrNotAMember):
		err = twirp.PermissionDenied.Error(err.Error())
	case errors.Is(err, ErrProposalClosed):
		err = twirp.FailedPrecondition.Error(err.Error())
	}

	_ = twirp.WriteError(w, err)
}

// requireCaller enforces the perimeter identity when auth is enabled:
// the token subject must be one of the given keys. With auth disabled
// every request passes.
func (s *Server) requireCaller(r *http.Request, keys ...string) error {
	if s.cfg.Issuer == "" {
		return nil
	}

	caller, ok := CallerFrom(r.Context())
	if !ok {
		return twirp.Unauthenticated.Error("auth required")
	}

	if !govalidator.IsIn(caller.Subject, keys...) {
		slog.Warn("caller not permitted", "caller", caller.Subject)
		return twirp.PermissionDenied.Error("permission denied")
	}

	return nil
}

func (s *Server) createVault(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Members []struct {
			PublicKey string `json:"public_key"`
			Share     int    `json:"share"`
		} `json:"members"`
		InitialBalance int64         `json:"initial_balance"`
		PolicyType     string        `json:"policy_type"`
		Policy         *PolicyConfig `json:"policy"`
		CurrentHeight  int64         `json:"current_height"`
	}

	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		renderErr(w, twirp.InvalidArgument.Error("malformed body"))
		return
	}

	typ, err := ParsePolicyType(body.PolicyType)
	if err != nil {
		renderErr(w, err)
		return
	}

	var custom PolicyConfig
	if body.Policy != nil {
		custom = *body.Policy
	} else if typ == PolicyCustom {
		renderErr(w, twirp.InvalidArgument.Error("custom policy requires a policy body"))
		return
	}

	policy, err := PolicyForType(typ, custom)
	if err != nil {
		renderErr(w, err)
		return
	}

	in := CreateVaultInput{
		InitialBalance: body.InitialBalance,
		Policy:         policy,
		CurrentHeight:  body.CurrentHeight,
	}

	for _, m := range body.Members {
		if m.PublicKey != "" && !govalidator.IsHexadecimal(m.PublicKey) {
			renderErr(w, twirp.InvalidArgumentError("public_key", "not hex encoded"))
			return
		}

		in.Members = append(in.Members, Member{
			PublicKey: m.PublicKey,
			Share:     m.Share,
		})
	}

	vault, err := s.CreateVault(r.Context(), in)
	if err != nil {
		renderErr(w, err)
		return
	}

	renderJSON(w, vault)
}

func (s *Server) getVault(w http.ResponseWriter, r *http.Request) {
	vault, err := s.GetVault(r.Context(), chi.URLParam(r, "vault"))
	if err != nil {
		renderErr(w, err)
		return
	}

	renderJSON(w, vault)
}

func (s *Server) createWithdrawal(w http.ResponseWriter, r *http.Request) {
	var req WithdrawalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		renderErr(w, twirp.InvalidArgument.Error("malformed body"))
		return
	}

	if err := s.requireCaller(r, req.Signers...); err != nil {
		renderErr(w, err)
		return
	}

	res, err := s.Withdraw(r.Context(), chi.URLParam(r, "vault"), req)
	if err != nil {
		renderErr(w, err)
		return
	}

	renderJSON(w, res)
}

func (s *Server) createProposal(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Proposer      string        `json:"proposer"`
		Type          string        `json:"proposal_type"`
		Title         string        `json:"title"`
		Description   string        `json:"description"`
		NewPolicy     *PolicyConfig `json:"new_policy"`
		CurrentHeight int64         `json:"current_height"`
	}

	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		renderErr(w, twirp.InvalidArgument.Error("malformed body"))
		return
	}

	typ, err := ParseProposalType(body.Type)
	if err != nil {
		renderErr(w, err)
		return
	}

	if err := s.requireCaller(r, body.Proposer); err != nil {
		renderErr(w, err)
		return
	}

	proposal, err := s.CreateProposal(r.Context(), chi.URLParam(r, "vault"), CreateProposalInput{
		Proposer:      body.Proposer,
		Type:          typ,
		Title:         body.Title,
		Description:   body.Description,
		NewPolicy:     body.NewPolicy,
		CurrentHeight: body.CurrentHeight,
	})

	if err != nil {
		renderErr(w, err)
		return
	}

	renderJSON(w, proposal)
}

func (s *Server) createVote(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Voter         string `json:"voter"`
		VoteFor       bool   `json:"vote_for"`
		CurrentHeight int64  `json:"current_height"`
	}

	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		renderErr(w, twirp.InvalidArgument.Error("malformed body"))
		return
	}

	proposalID, err := uuid.Parse(chi.URLParam(r, "proposal"))
	if err != nil {
		renderErr(w, twirp.InvalidArgumentError("proposal", "not a valid id"))
		return
	}

	if err := s.requireCaller(r, body.Voter); err != nil {
		renderErr(w, err)
		return
	}

	if err := s.Vote(r.Context(), chi.URLParam(r, "vault"), proposalID, body.Voter, body.VoteFor, body.CurrentHeight); err != nil {
		renderErr(w, err)
		return
	}

	renderJSON(w, map[string]any{"ok": true})
}

func (s *Server) listProposals(w http.ResponseWriter, r *http.Request) {
	currentHeight := cast.ToInt64(r.URL.Query().Get("current_height"))

	views, err := s.ListProposals(r.Context(), chi.URLParam(r, "vault"), currentHeight)
	if err != nil {
		renderErr(w, err)
		return
	}

	renderJSON(w, views)
}
