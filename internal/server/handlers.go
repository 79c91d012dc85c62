package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"option-pricer/internal/errors"
	"option-pricer/internal/greeks"
	"option-pricer/internal/logging"
	"option-pricer/internal/models"
	"option-pricer/internal/pricing"
	"option-pricer/internal/store"
)

// valuationRequest is the JSON body shared by the price and greeks
// endpoints. Zero method, style, steps, paths and seed fall back to the
// server configuration.
type valuationRequest struct {
	Symbol        string  `json:"symbol,omitempty"`
	Kind          string  `json:"kind"`
	Style         string  `json:"style,omitempty"`
	Strike        float64 `json:"strike"`
	Maturity      float64 `json:"maturity"`
	Spot          float64 `json:"spot"`
	Rate          float64 `json:"rate"`
	Vol           float64 `json:"vol"`
	DividendYield float64 `json:"dividend_yield,omitempty"`
	Method        string  `json:"method,omitempty"`
	Steps         int     `json:"steps,omitempty"`
	Paths         int     `json:"paths,omitempty"`
	Seed          *int64  `json:"seed,omitempty"`
	Check         bool    `json:"check,omitempty"`
	Save          bool    `json:"save,omitempty"`
}

type priceResponse struct {
	Symbol      string   `json:"symbol,omitempty"`
	Price       float64  `json:"price"`
	Method      string   `json:"method"`
	StdErr      *float64 `json:"stderr,omitempty"`
	CILow       *float64 `json:"ci_low,omitempty"`
	CIHigh      *float64 `json:"ci_high,omitempty"`
	Steps       int      `json:"steps,omitempty"`
	Paths       int      `json:"paths,omitempty"`
	ElapsedMS   float64  `json:"elapsed_ms"`
	Warning     string   `json:"warning,omitempty"`
	ValuationID string   `json:"valuation_id,omitempty"`
}

type greeksResponse struct {
	Symbol string     `json:"symbol,omitempty"`
	Delta  float64    `json:"delta"`
	Gamma  float64    `json:"gamma"`
	Vega   float64    `json:"vega"`
	Theta  float64    `json:"theta"`
	Rho    float64    `json:"rho"`
	Method string     `json:"method"`
	Bumps  *bumpsJSON `json:"bumps,omitempty"`
}

type bumpsJSON struct {
	Spot float64 `json:"spot"`
	Vol  float64 `json:"vol"`
	Time float64 `json:"time"`
	Rate float64 `json:"rate"`
}

type methodInfo struct {
	Name   string   `json:"name"`
	Method string   `json:"method"`
	Styles []string `json:"styles"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// resolve maps the request onto domain types, applying configured defaults
// and the server's request caps.
func (s *Server) resolve(req *valuationRequest) (models.ContractSpec, models.MarketState, models.Method, pricing.Params, error) {
	var contract models.ContractSpec
	var market models.MarketState

	kind, err := models.ParseOptionKind(req.Kind)
	if err != nil {
		return contract, market, "", pricing.Params{}, err
	}

	style := models.ExerciseEuropean
	if req.Style != "" {
		style, err = models.ParseExerciseStyle(req.Style)
		if err != nil {
			return contract, market, "", pricing.Params{}, err
		}
	}

	methodName := req.Method
	if methodName == "" {
		methodName = s.cfg.Pricing.DefaultMethod
	}
	method, err := models.ParseMethod(methodName)
	if err != nil {
		return contract, market, "", pricing.Params{}, err
	}

	params := pricing.DefaultParams()
	params.Steps = s.cfg.Lattice.Steps
	params.Paths = s.cfg.Simulation.Paths
	params.Seed = s.cfg.Simulation.Seed
	params.Workers = s.cfg.Simulation.Workers
	if req.Steps > 0 {
		params.Steps = req.Steps
	}
	if req.Paths > 0 {
		params.Paths = req.Paths
	}
	if req.Seed != nil {
		params.Seed = *req.Seed
	}

	if params.Steps > s.cfg.Server.MaxSteps {
		return contract, market, "", pricing.Params{}, errors.NewParameterError("steps", params.Steps, "exceeds the server cap")
	}
	if params.Paths > s.cfg.Server.MaxPaths {
		return contract, market, "", pricing.Params{}, errors.NewParameterError("paths", params.Paths, "exceeds the server cap")
	}

	yield := req.DividendYield
	if yield == 0 {
		yield = s.cfg.Pricing.DividendYield
	}

	contract = models.ContractSpec{
		Strike:   req.Strike,
		Maturity: req.Maturity,
		Kind:     kind,
		Style:    style,
	}
	market = models.MarketState{
		Spot:          req.Spot,
		Rate:          req.Rate,
		Vol:           req.Vol,
		DividendYield: yield,
	}

	return contract, market, method, params, nil
}

func (s *Server) handlePrice(w http.ResponseWriter, r *http.Request) {
	var req valuationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	if req.Save && s.store == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "valuation journal unavailable"})
		return
	}

	contract, market, method, params, err := s.resolve(&req)
	if err != nil {
		s.writeError(w, err)
		return
	}

	result, err := pricing.Price(contract, market, method, params)
	if err != nil {
		s.writeError(w, err)
		return
	}

	resp := priceResponse{
		Symbol: req.Symbol,
		Price:  result.Price,
		Method: string(result.Method),
	}
	if ci := result.ConfidenceInterval; ci != nil {
		resp.StdErr = &ci.StdErr
		resp.CILow = &ci.Low
		resp.CIHigh = &ci.High
	}
	if d := result.Diagnostics; d != nil {
		resp.Steps = d.Steps
		resp.Paths = d.Paths
		resp.ElapsedMS = float64(d.Elapsed.Microseconds()) / 1000
	}

	if req.Check {
		if warn := pricing.CrossCheck(result, contract, market, s.cfg.Pricing.CrossCheckTolerance); warn != nil {
			resp.Warning = warn.Error()
		}
	}

	if req.Save {
		valuation := buildValuation(&req, contract, market, result, params)
		if err := s.store.SaveValuation(r.Context(), valuation); err != nil {
			s.writeError(w, err)
			return
		}
		resp.ValuationID = valuation.ID

		var elapsed time.Duration
		if result.Diagnostics != nil {
			elapsed = result.Diagnostics.Elapsed
		}
		logging.LogValuation(logging.FromContext(r.Context()),
			valuation.ID, req.Symbol, string(result.Method), result.Price, elapsed)
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGreeks(w http.ResponseWriter, r *http.Request) {
	var req valuationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	contract, market, method, params, err := s.resolve(&req)
	if err != nil {
		s.writeError(w, err)
		return
	}

	pricer, err := pricing.NewPricer(method, params)
	if err != nil {
		s.writeError(w, err)
		return
	}

	engine := greeks.NewEngine(pricer, greeks.Config{
		RelativeBump: s.cfg.Greeks.RelativeBump,
		MinBump:      s.cfg.Greeks.MinBump,
		Workers:      s.cfg.Greeks.Workers,
	})
	result, err := engine.Compute(contract, market)
	if err != nil {
		s.writeError(w, err)
		return
	}

	resp := greeksResponse{
		Symbol: req.Symbol,
		Delta:  result.Delta,
		Gamma:  result.Gamma,
		Vega:   result.Vega,
		Theta:  result.Theta,
		Rho:    result.Rho,
		Method: string(result.Method),
	}
	if result.Bumps != nil {
		resp.Bumps = &bumpsJSON{
			Spot: result.Bumps.Spot,
			Vol:  result.Bumps.Vol,
			Time: result.Bumps.Time,
			Rate: result.Bumps.Rate,
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleMethods(w http.ResponseWriter, r *http.Request) {
	methods := []methodInfo{
		{Name: "black-scholes", Method: string(models.MethodAnalytic), Styles: []string{string(models.ExerciseEuropean)}},
		{Name: "crr-binomial", Method: string(models.MethodLattice), Styles: []string{string(models.ExerciseEuropean), string(models.ExerciseAmerican)}},
		{Name: "gbm-monte-carlo", Method: string(models.MethodSimulation), Styles: []string{string(models.ExerciseEuropean)}},
	}
	writeJSON(w, http.StatusOK, methods)
}

func (s *Server) handleValuations(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "valuation journal unavailable"})
		return
	}

	filter := store.ValuationFilter{
		Symbol: r.URL.Query().Get("symbol"),
		Limit:  50,
	}
	if m := r.URL.Query().Get("method"); m != "" {
		method, err := models.ParseMethod(m)
		if err != nil {
			s.writeError(w, err)
			return
		}
		filter.Method = method
	}

	valuations, err := s.store.Valuations(r.Context(), filter)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, valuations)
}

func (s *Server) handleValuationByID(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "valuation journal unavailable"})
		return
	}

	id := mux.Vars(r)["id"]
	valuation, err := s.store.ValuationByID(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, valuation)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func buildValuation(req *valuationRequest, contract models.ContractSpec, market models.MarketState, result *models.PricingResult, params pricing.Params) *models.Valuation {
	v := &models.Valuation{
		Symbol:   req.Symbol,
		Contract: contract,
		Market:   market,
		Method:   result.Method,
		Price:    result.Price,
		Note:     "api",
	}
	switch result.Method {
	case models.MethodLattice:
		v.Steps = params.Steps
	case models.MethodSimulation:
		v.Paths = params.Paths
		v.Seed = params.Seed
		if d := result.Diagnostics; d != nil {
			v.Steps = d.Steps
		}
	}
	if ci := result.ConfidenceInterval; ci != nil {
		v.StdErr = ci.StdErr
		v.CILow = ci.Low
		v.CIHigh = ci.High
	}
	return v
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	var paramErr *errors.ParameterError
	var styleErr *errors.StyleError

	status := http.StatusInternalServerError
	switch {
	case errors.As(err, &paramErr):
		status = http.StatusBadRequest
	case errors.As(err, &styleErr):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, errors.ErrDataNotFound):
		status = http.StatusNotFound
	}

	if status == http.StatusInternalServerError {
		s.logger.Error().Err(err).Msg("Request failed")
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
