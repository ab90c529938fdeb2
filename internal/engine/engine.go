package engine

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/sluicehq/sluice/internal/plugin"
	"github.com/sluicehq/sluice/internal/registry"
	"github.com/sluicehq/sluice/internal/schema"
)

// Engine resolves schemas and computes verdicts. It holds no per-payload
// state and is safe to share across requests as long as callers honor the
// registry's serialization contract.
type Engine struct {
	schemas *schema.Store
	plugins *plugin.Loader
	log     *slog.Logger
}

// New creates an Engine over the given schema store and plugin loader.
// A nil logger defaults to slog.Default().
func New(schemas *schema.Store, plugins *plugin.Loader, log *slog.Logger) *Engine {
	if log == nil {
		log = slog.Default()
	}
	return &Engine{schemas: schemas, plugins: plugins, log: log}
}

// Validate computes the verdict for one payload routed to flowID.
//
// The query context must be bound to the identifiers resolved at ingest
// entry; the engine reads history through it and never mutates the
// registry. Validate always returns a definite verdict: internal faults
// are logged and folded into the verdict rather than propagated.
func (e *Engine) Validate(ctx context.Context, flowID string, payload any, qc *registry.QueryContext) Verdict {
	pl, loadErr := e.plugins.Load(flowID)
	if loadErr != nil {
		// Broken plugin file. Heuristic resolution still applies; the fault
		// surfaces as a custom error below so the verdict reflects it.
		e.log.Error("plugin load failed", "flow", flowID, "error", loadErr)
	}

	candidates := e.resolveCandidates(flowID, payload, pl, qc)
	if len(candidates) == 0 {
		return Verdict{
			Status: registry.StatusInvalid,
			Reason: ReasonNoSchemaFound,
			Errors: []string{NoSchemaFoundMessage},
		}
	}

	schemaPassed, schemaErrors := e.runCandidates(flowID, candidates, payload)

	customErrors := e.runCustomRules(flowID, pl, payload, qc)
	if loadErr != nil {
		customErrors = append(customErrors, InternalErrorMessage)
	}

	if schemaPassed && len(customErrors) == 0 {
		return Verdict{Status: registry.StatusValid, Candidates: candidates}
	}

	var errs []string
	if !schemaPassed {
		errs = append(errs, schemaErrors...)
	}
	errs = append(errs, customErrors...)
	return Verdict{
		Status:     registry.StatusInvalid,
		Reason:     ReasonValidationFailure,
		Errors:     errs,
		Candidates: candidates,
	}
}

// resolveCandidates applies the resolution precedence and returns the
// candidate schema paths in deterministic order.
func (e *Engine) resolveCandidates(flowID string, payload any, pl plugin.Plugin, qc *registry.QueryContext) []string {
	// 1. Plugin selection wins when it yields at least one resolvable path.
	if sel, ok := pl.(plugin.SchemaSelector); ok {
		refs, err := sel.SelectSchema(payload, qc)
		if err != nil {
			// A failing selector abstains; heuristics take over.
			e.log.Error("schema selection failed", "flow", flowID, "error", err)
		}
		var paths []string
		for _, ref := range refs {
			if p, found := e.schemas.Resolve(ref, flowID); found {
				paths = append(paths, p)
			} else {
				e.log.Warn("selected schema not found", "flow", flowID, "ref", ref)
			}
		}
		if len(paths) > 0 {
			return paths
		}
	}

	// 2. Payload discriminant: "<type>.schema", flow dir then shared.
	if name := discriminant(payload); name != "" {
		if p, found := e.schemas.DiscriminantSchema(flowID, name); found {
			return []string{p}
		}
	}

	flowSchemas := e.schemas.ListFlowSchemas(flowID)
	commonSchemas := e.schemas.ListCommonSchemas()

	// 3. Exactly one flow-local schema.
	if len(flowSchemas) == 1 {
		return flowSchemas
	}
	// 4. Empty flow dir, exactly one shared schema.
	if len(flowSchemas) == 0 && len(commonSchemas) == 1 {
		return commonSchemas
	}
	// 5. Everything in the flow dir, else everything shared.
	if len(flowSchemas) > 0 {
		return flowSchemas
	}
	return commonSchemas
}

// runCandidates validates the payload against every candidate
// independently. It reports pass when at least one candidate accepts the
// payload; on total failure it returns the error list of the candidate
// with the fewest field errors, ties broken by enumeration order.
func (e *Engine) runCandidates(flowID string, candidates []string, payload any) (bool, []string) {
	var best []string
	for _, path := range candidates {
		fieldErrs, err := e.schemas.ValidatePayload(path, payload)
		if err != nil {
			// Unreadable or uncompilable schema: the candidate fails with a
			// definite sentence instead of faulting the request.
			e.log.Error("schema validation fault", "flow", flowID, "schema", path, "error", err)
			fieldErrs = []string{fmt.Sprintf("schema %s could not be evaluated", filepath.Base(path))}
		}
		if len(fieldErrs) == 0 {
			return true, nil
		}
		if best == nil || len(fieldErrs) < len(best) {
			best = fieldErrs
		}
	}
	return false, best
}

// runCustomRules executes the plugin's custom rules, if any. Rule-raised
// domain errors become a single custom error with the rule's message;
// anything unexpected (including panics) is logged and downgraded to the
// generic internal error so the payload still gets a verdict.
func (e *Engine) runCustomRules(flowID string, pl plugin.Plugin, payload any, qc *registry.QueryContext) (msgs []string) {
	val, ok := pl.(plugin.CustomValidator)
	if !ok {
		return nil
	}

	defer func() {
		if r := recover(); r != nil {
			e.log.Error("custom rule panic", "flow", flowID, "panic", r)
			msgs = []string{InternalErrorMessage}
		}
	}()

	out, err := val.ValidateCustom(payload, qc)
	if err != nil {
		if re, ok := plugin.AsRuleError(err); ok {
			return []string{re.Message}
		}
		e.log.Error("custom rule fault", "flow", flowID, "error", err)
		return []string{InternalErrorMessage}
	}
	return out
}

// discriminant extracts the conventional "type" field from an object
// payload. Non-object payloads and non-string types have no discriminant.
func discriminant(payload any) string {
	obj, ok := payload.(map[string]any)
	if !ok {
		return ""
	}
	name, _ := obj["type"].(string)
	return name
}
