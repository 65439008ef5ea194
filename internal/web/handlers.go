package web

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/poolworks/navengine/internal/ledger"
	"github.com/poolworks/navengine/internal/types"
)

// decodeBody parses the request body into dst, rejecting unknown fields.
func decodeBody(r *http.Request, dst interface{}) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(dst)
}

type createPoolRequest struct {
	ID                   uint64 `json:"id"`
	Name                 string `json:"name"`
	BaseAsset            string `json:"base_asset"`
	BaseDecimals         uint32 `json:"base_decimals"`
	SpreadBps            uint32 `json:"spread_bps"`
	LockupSeconds        int64  `json:"lockup_seconds"`
	FeeCollector         string `json:"fee_collector"`
	AllowListed          bool   `json:"allow_listed"`
	InitialPerShareValue string `json:"initial_per_share_value,omitempty"`
}

func (ws *WebServer) handleCreatePool(w http.ResponseWriter, r *http.Request) {
	var req createPoolRequest
	if err := decodeBody(r, &req); err != nil {
		ws.writeErrorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	pool := types.Pool{
		ID:             types.PoolID(req.ID),
		Name:           req.Name,
		BaseAsset:      types.AssetID(req.BaseAsset),
		BaseDecimals:   req.BaseDecimals,
		SpreadBps:      req.SpreadBps,
		LockupDuration: time.Duration(req.LockupSeconds) * time.Second,
		FeeCollector:   req.FeeCollector,
		AllowListed:    req.AllowListed,
	}
	if req.InitialPerShareValue != "" {
		value, ok := parseAmount(req.InitialPerShareValue)
		if !ok {
			ws.writeErrorResponse(w, http.StatusBadRequest, "Invalid initial per-share value")
			return
		}
		pool.StoredPerShareValue = value
	}

	created, err := ws.ledger.CreatePool(r.Context(), pool)
	if err != nil {
		ws.writeOperationError(w, err, "create_pool")
		return
	}
	ws.writeJSONResponse(w, http.StatusCreated, created)
}

type issueRequest struct {
	Depositor string `json:"depositor"`
	Recipient string `json:"recipient,omitempty"`
	Asset     string `json:"asset"`
	Amount    string `json:"amount"`
	MinShares string `json:"min_shares,omitempty"`
}

func (ws *WebServer) handleIssue(w http.ResponseWriter, r *http.Request) {
	id, ok := poolID(r)
	if !ok {
		ws.writeErrorResponse(w, http.StatusBadRequest, "Invalid pool ID")
		return
	}
	var req issueRequest
	if err := decodeBody(r, &req); err != nil {
		ws.writeErrorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	amount, ok := parseAmount(req.Amount)
	if !ok {
		ws.writeErrorResponse(w, http.StatusBadRequest, "Invalid amount")
		return
	}

	params := ledger.IssueParams{
		Pool:      id,
		Depositor: req.Depositor,
		Recipient: req.Recipient,
		Asset:     types.AssetID(req.Asset),
		Amount:    amount,
	}
	if req.MinShares != "" {
		minShares, ok := parseAmount(req.MinShares)
		if !ok {
			ws.writeErrorResponse(w, http.StatusBadRequest, "Invalid minimum shares")
			return
		}
		params.MinShares = minShares
	}

	result, err := ws.ledger.Issue(r.Context(), params)
	if err != nil {
		ws.writeOperationError(w, err, "issue")
		return
	}
	ws.writeJSONResponse(w, http.StatusOK, result)
}

type redeemRequest struct {
	Holder      string `json:"holder"`
	Actor       string `json:"actor,omitempty"`
	Shares      string `json:"shares"`
	MinValue    string `json:"min_value,omitempty"`
	OutputAsset string `json:"output_asset,omitempty"`
}

func (ws *WebServer) handleRedeem(w http.ResponseWriter, r *http.Request) {
	id, ok := poolID(r)
	if !ok {
		ws.writeErrorResponse(w, http.StatusBadRequest, "Invalid pool ID")
		return
	}
	var req redeemRequest
	if err := decodeBody(r, &req); err != nil {
		ws.writeErrorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	shares, ok := parseAmount(req.Shares)
	if !ok {
		ws.writeErrorResponse(w, http.StatusBadRequest, "Invalid share amount")
		return
	}

	params := ledger.RedeemParams{
		Pool:        id,
		Holder:      req.Holder,
		Actor:       req.Actor,
		Shares:      shares,
		OutputAsset: types.AssetID(req.OutputAsset),
	}
	if req.MinValue != "" {
		minValue, ok := parseAmount(req.MinValue)
		if !ok {
			ws.writeErrorResponse(w, http.StatusBadRequest, "Invalid minimum value")
			return
		}
		params.MinValue = minValue
	}

	result, err := ws.ledger.Redeem(r.Context(), params)
	if err != nil {
		ws.writeOperationError(w, err, "redeem")
		return
	}
	ws.writeJSONResponse(w, http.StatusOK, result)
}

type actorRequest struct {
	Actor string `json:"actor"`
}

func (ws *WebServer) handleRefresh(w http.ResponseWriter, r *http.Request) {
	id, ok := poolID(r)
	if !ok {
		ws.writeErrorResponse(w, http.StatusBadRequest, "Invalid pool ID")
		return
	}
	var req actorRequest
	if err := decodeBody(r, &req); err != nil {
		ws.writeErrorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	result, err := ws.ledger.RefreshValuation(r.Context(), id, req.Actor)
	if err != nil {
		ws.writeOperationError(w, err, "refresh")
		return
	}
	ws.writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"pool_id":     id,
		"result":      result,
		"unavailable": result.Unavailable(),
	})
}

func (ws *WebServer) handleSweep(w http.ResponseWriter, r *http.Request) {
	id, ok := poolID(r)
	if !ok {
		ws.writeErrorResponse(w, http.StatusBadRequest, "Invalid pool ID")
		return
	}
	var req actorRequest
	if err := decodeBody(r, &req); err != nil {
		ws.writeErrorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	plan, err := ws.ledger.Sweep(r.Context(), id, req.Actor)
	if err != nil {
		ws.writeOperationError(w, err, "sweep")
		return
	}
	ws.writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"pool_id":            id,
		"evicted_assets":     plan.EvictAssets,
		"deactivated_venues": plan.DeactivateVenues,
	})
}

type transferRequest struct {
	Asset        string `json:"asset"`
	Amount       string `json:"amount"`
	Venue        string `json:"venue"`
	Actor        string `json:"actor"`
	ToleranceBps uint32 `json:"tolerance_bps,omitempty"`
}

func (ws *WebServer) transferParams(r *http.Request) (ledger.TransferParams, string, bool) {
	id, ok := poolID(r)
	if !ok {
		return ledger.TransferParams{}, "Invalid pool ID", false
	}
	var req transferRequest
	if err := decodeBody(r, &req); err != nil {
		return ledger.TransferParams{}, "Invalid request body", false
	}
	amount, ok := parseAmount(req.Amount)
	if !ok {
		return ledger.TransferParams{}, "Invalid amount", false
	}
	return ledger.TransferParams{
		Pool:         id,
		Asset:        types.AssetID(req.Asset),
		Amount:       amount,
		Venue:        types.VenueKind(req.Venue),
		Actor:        req.Actor,
		ToleranceBps: req.ToleranceBps,
	}, "", true
}

func (ws *WebServer) handleTransferOut(w http.ResponseWriter, r *http.Request) {
	params, msg, ok := ws.transferParams(r)
	if !ok {
		ws.writeErrorResponse(w, http.StatusBadRequest, msg)
		return
	}
	operationID, err := ws.ledger.TransferOut(r.Context(), params)
	if err != nil {
		ws.writeOperationError(w, err, "transfer_out")
		return
	}
	ws.writeJSONResponse(w, http.StatusOK, map[string]interface{}{"operation_id": operationID})
}

func (ws *WebServer) handleTransferIn(w http.ResponseWriter, r *http.Request) {
	params, msg, ok := ws.transferParams(r)
	if !ok {
		ws.writeErrorResponse(w, http.StatusBadRequest, msg)
		return
	}
	operationID, err := ws.ledger.TransferIn(r.Context(), params)
	if err != nil {
		ws.writeOperationError(w, err, "transfer_in")
		return
	}
	ws.writeJSONResponse(w, http.StatusOK, map[string]interface{}{"operation_id": operationID})
}

type virtualSupplyRequest struct {
	Delta string `json:"delta"`
	Actor string `json:"actor"`
}

func (ws *WebServer) handleAdjustVirtualSupply(w http.ResponseWriter, r *http.Request) {
	id, ok := poolID(r)
	if !ok {
		ws.writeErrorResponse(w, http.StatusBadRequest, "Invalid pool ID")
		return
	}
	var req virtualSupplyRequest
	if err := decodeBody(r, &req); err != nil {
		ws.writeErrorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	delta, ok := parseAmount(req.Delta)
	if !ok {
		ws.writeErrorResponse(w, http.StatusBadRequest, "Invalid delta")
		return
	}

	if err := ws.ledger.AdjustVirtualSupply(r.Context(), id, delta, req.Actor); err != nil {
		ws.writeOperationError(w, err, "adjust_virtual_supply")
		return
	}
	ws.writeJSONResponse(w, http.StatusOK, map[string]interface{}{"pool_id": id, "delta": delta})
}

type paramsRequest struct {
	SpreadBps     uint32 `json:"spread_bps"`
	LockupSeconds int64  `json:"lockup_seconds"`
	FeeCollector  string `json:"fee_collector"`
	AllowListed   bool   `json:"allow_listed"`
}

func (ws *WebServer) handleSetParams(w http.ResponseWriter, r *http.Request) {
	id, ok := poolID(r)
	if !ok {
		ws.writeErrorResponse(w, http.StatusBadRequest, "Invalid pool ID")
		return
	}
	var req paramsRequest
	if err := decodeBody(r, &req); err != nil {
		ws.writeErrorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	err := ws.ledger.SetPoolParams(r.Context(), id, types.PoolParams{
		SpreadBps:      req.SpreadBps,
		LockupDuration: time.Duration(req.LockupSeconds) * time.Second,
		FeeCollector:   req.FeeCollector,
		AllowListed:    req.AllowListed,
	})
	if err != nil {
		ws.writeOperationError(w, err, "set_params")
		return
	}
	ws.writeJSONResponse(w, http.StatusOK, map[string]interface{}{"pool_id": id})
}

type eligibleInputRequest struct {
	Asset    string `json:"asset"`
	Eligible bool   `json:"eligible"`
}

func (ws *WebServer) handleSetEligibleInput(w http.ResponseWriter, r *http.Request) {
	id, ok := poolID(r)
	if !ok {
		ws.writeErrorResponse(w, http.StatusBadRequest, "Invalid pool ID")
		return
	}
	var req eligibleInputRequest
	if err := decodeBody(r, &req); err != nil {
		ws.writeErrorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := ws.ledger.SetEligibleInput(r.Context(), id, types.AssetID(req.Asset), req.Eligible); err != nil {
		ws.writeOperationError(w, err, "set_eligible_input")
		return
	}
	ws.writeJSONResponse(w, http.StatusOK, map[string]interface{}{"pool_id": id, "asset": req.Asset, "eligible": req.Eligible})
}

type operatorRequest struct {
	Holder   string `json:"holder"`
	Operator string `json:"operator"`
	Approved bool   `json:"approved"`
}

func (ws *WebServer) handleSetOperator(w http.ResponseWriter, r *http.Request) {
	id, ok := poolID(r)
	if !ok {
		ws.writeErrorResponse(w, http.StatusBadRequest, "Invalid pool ID")
		return
	}
	var req operatorRequest
	if err := decodeBody(r, &req); err != nil {
		ws.writeErrorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := ws.ledger.SetOperator(r.Context(), id, req.Holder, req.Operator, req.Approved); err != nil {
		ws.writeOperationError(w, err, "set_operator")
		return
	}
	ws.writeJSONResponse(w, http.StatusOK, map[string]interface{}{"pool_id": id, "holder": req.Holder, "operator": req.Operator, "approved": req.Approved})
}

type allowListRequest struct {
	Holder  string `json:"holder"`
	Allowed bool   `json:"allowed"`
}

func (ws *WebServer) handleSetAllowed(w http.ResponseWriter, r *http.Request) {
	id, ok := poolID(r)
	if !ok {
		ws.writeErrorResponse(w, http.StatusBadRequest, "Invalid pool ID")
		return
	}
	var req allowListRequest
	if err := decodeBody(r, &req); err != nil {
		ws.writeErrorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := ws.ledger.SetAllowed(r.Context(), id, req.Holder, req.Allowed); err != nil {
		ws.writeOperationError(w, err, "set_allowed")
		return
	}
	ws.writeJSONResponse(w, http.StatusOK, map[string]interface{}{"pool_id": id, "holder": req.Holder, "allowed": req.Allowed})
}
