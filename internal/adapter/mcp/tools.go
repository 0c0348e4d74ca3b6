package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/guillermoBallester/maskit/internal/adapter/policy"
	"github.com/guillermoBallester/maskit/internal/core/domain"
	"github.com/guillermoBallester/maskit/internal/core/port"
	"github.com/guillermoBallester/maskit/internal/core/service"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// Server metadata
const serverName = "maskit"

// Tool descriptions
const (
	descListMasks = "List every mask available by name: rule sets from the catalog file and masks saved to the store. " +
		"Call this first to discover which masks exist before applying one."

	descDescribeMask = "Return the portable JSON form of a named mask: its mask character, separator and rules. " +
		"Each rule names a dot-separated key path, a mask (fixed length, literal, helper or registered function) " +
		"and an optional ignore condition."

	descApplyMask = "Mask fields of a JSON document. Name a mask from list_masks, or pass inline rules. " +
		"Returns the masked copy and the top-level fields that changed. The input document is never modified."

	descApplyRules = "Inline rules as a JSON or YAML list, e.g. " +
		`[{"key": "email", "mask": {"helper": "email"}}, {"key": "name", "mask": 4}]. ` +
		"A number masks with that many characters, a string replaces the value verbatim."

	descMaskAll = "Mask every primitive value in a JSON document, keeping its structure. " +
		"Strings keep their length; numbers, booleans and timestamps are masked as their text form."

	descSaveMask = "Apply a mask to a sample document and save the mask under a name for later use. " +
		"Saving an existing name replaces it. Requires a configured store."

	descLoadMask = "Load a saved mask: its masked fields, portable form and timestamps."

	descDeleteMask = "Delete a saved mask from the store."

	descDocumentParam = "JSON object to mask"
	descParamParam    = "Optional JSON object passed to ignore conditions and mask functions, e.g. {\"role\": \"admin\"}"
	descMaskParam     = "Name of a mask returned by list_masks"
)

func RegisterTools(s *server.MCPServer, masks *service.MaskService) {
	s.AddTool(
		mcp.NewTool("list_masks",
			mcp.WithDescription(descListMasks),
		),
		listMasksHandler(masks),
	)

	s.AddTool(
		mcp.NewTool("describe_mask",
			mcp.WithDescription(descDescribeMask),
			mcp.WithString("name",
				mcp.Required(),
				mcp.Description(descMaskParam),
			),
		),
		describeMaskHandler(masks),
	)

	s.AddTool(
		mcp.NewTool("apply_mask",
			mcp.WithDescription(descApplyMask),
			mcp.WithObject("document",
				mcp.Required(),
				mcp.Description(descDocumentParam),
			),
			mcp.WithString("mask",
				mcp.Description(descMaskParam),
			),
			mcp.WithString("rules",
				mcp.Description(descApplyRules),
			),
			mcp.WithObject("param",
				mcp.Description(descParamParam),
			),
		),
		applyMaskHandler(masks),
	)

	s.AddTool(
		mcp.NewTool("mask_all",
			mcp.WithDescription(descMaskAll),
			mcp.WithObject("document",
				mcp.Required(),
				mcp.Description(descDocumentParam),
			),
		),
		maskAllHandler(masks),
	)

	s.AddTool(
		mcp.NewTool("save_mask",
			mcp.WithDescription(descSaveMask),
			mcp.WithString("name",
				mcp.Required(),
				mcp.Description("Name to save the mask under"),
			),
			mcp.WithObject("document",
				mcp.Required(),
				mcp.Description("Sample JSON object the mask is applied to before saving"),
			),
			mcp.WithString("mask",
				mcp.Description("Existing mask to save (defaults to name when rules are not given)"),
			),
			mcp.WithString("rules",
				mcp.Description(descApplyRules),
			),
			mcp.WithObject("param",
				mcp.Description(descParamParam),
			),
		),
		saveMaskHandler(masks),
	)

	s.AddTool(
		mcp.NewTool("load_mask",
			mcp.WithDescription(descLoadMask),
			mcp.WithString("name",
				mcp.Required(),
				mcp.Description("Name of a saved mask"),
			),
		),
		loadMaskHandler(masks),
	)

	s.AddTool(
		mcp.NewTool("delete_mask",
			mcp.WithDescription(descDeleteMask),
			mcp.WithString("name",
				mcp.Required(),
				mcp.Description("Name of a saved mask"),
			),
		),
		deleteMaskHandler(masks),
	)
}

func listMasksHandler(masks *service.MaskService) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		infos, err := masks.List(ctx)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to list masks: %v", err)), nil
		}
		return jsonResult(infos)
	}
}

func describeMaskHandler(masks *service.MaskService) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		name, ok := request.GetArguments()["name"].(string)
		if !ok || name == "" {
			return mcp.NewToolResultError("name is required"), nil
		}

		text, err := masks.Describe(ctx, name)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to describe mask: %v", err)), nil
		}
		return mcp.NewToolResultText(text), nil
	}
}

func applyMaskHandler(masks *service.MaskService) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := request.GetArguments()

		doc, err := objectArg(args, "document", true)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		param, err := objectArg(args, "param", false)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		rules, err := rulesArg(args)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		name, _ := args["mask"].(string)
		if name == "" && rules == nil {
			return mcp.NewToolResultError("mask or rules is required"), nil
		}

		ctx = service.WithToolName(ctx, "apply_mask")
		res, err := masks.Apply(ctx, service.ApplyRequest{
			MaskName: name,
			Rules:    rules,
			Document: doc,
			Param:    domain.Param(param),
		})
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("apply failed: %v", err)), nil
		}
		return jsonResult(res)
	}
}

func maskAllHandler(masks *service.MaskService) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		doc, err := objectArg(request.GetArguments(), "document", true)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		ctx = service.WithToolName(ctx, "mask_all")
		res, err := masks.Apply(ctx, service.ApplyRequest{MaskAll: true, Document: doc})
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("mask_all failed: %v", err)), nil
		}
		return jsonResult(res)
	}
}

func saveMaskHandler(masks *service.MaskService) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := request.GetArguments()

		name, ok := args["name"].(string)
		if !ok || name == "" {
			return mcp.NewToolResultError("name is required"), nil
		}
		doc, err := objectArg(args, "document", true)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		param, err := objectArg(args, "param", false)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		rules, err := rulesArg(args)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		ctx = service.WithToolName(ctx, "save_mask")
		var rec *port.MaskRecord
		if rules != nil {
			cm, cerr := masks.Engine().Compile(rules)
			if cerr != nil {
				return mcp.NewToolResultError(fmt.Sprintf("failed to compile rules: %v", cerr)), nil
			}
			rec, err = masks.Save(ctx, name, cm, doc, domain.Param(param))
		} else {
			source, _ := args["mask"].(string)
			if source == "" {
				source = name
			}
			rec, err = masks.SaveNamed(ctx, source, name, doc, domain.Param(param))
		}
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to save mask: %v", err)), nil
		}
		return jsonResult(newSavedMask(rec))
	}
}

func loadMaskHandler(masks *service.MaskService) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		name, ok := request.GetArguments()["name"].(string)
		if !ok || name == "" {
			return mcp.NewToolResultError("name is required"), nil
		}

		ctx = service.WithToolName(ctx, "load_mask")
		_, rec, err := masks.Load(ctx, name)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to load mask: %v", err)), nil
		}
		return jsonResult(newSavedMask(rec))
	}
}

func deleteMaskHandler(masks *service.MaskService) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		name, ok := request.GetArguments()["name"].(string)
		if !ok || name == "" {
			return mcp.NewToolResultError("name is required"), nil
		}

		if err := masks.Delete(ctx, name); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to delete mask: %v", err)), nil
		}
		return mcp.NewToolResultText(fmt.Sprintf("deleted mask %q", name)), nil
	}
}

// savedMask is the tool view of a stored record. The original document is
// left out so raw values never reach the client.
type savedMask struct {
	Name         string          `json:"name"`
	MaskedFields []string        `json:"masked_fields"`
	Mask         json.RawMessage `json:"mask"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

func newSavedMask(rec *port.MaskRecord) *savedMask {
	masked := rec.MaskedFields
	if masked == nil {
		masked = []string{}
	}
	return &savedMask{
		Name:         rec.Name,
		MaskedFields: masked,
		Mask:         json.RawMessage(rec.SerializedMask),
		CreatedAt:    rec.CreatedAt,
		UpdatedAt:    rec.UpdatedAt,
	}
}

// objectArg reads a JSON object argument. Clients that send the object
// encoded as a string are accepted too.
func objectArg(args map[string]any, key string, required bool) (map[string]any, error) {
	switch v := args[key].(type) {
	case nil:
		if required {
			return nil, fmt.Errorf("%s is required", key)
		}
		return nil, nil
	case map[string]any:
		return v, nil
	case string:
		var obj map[string]any
		if err := json.Unmarshal([]byte(v), &obj); err != nil {
			return nil, fmt.Errorf("%s must be a JSON object: %w", key, err)
		}
		if obj == nil && required {
			return nil, fmt.Errorf("%s is required", key)
		}
		return obj, nil
	default:
		return nil, fmt.Errorf("%s must be a JSON object, got %T", key, v)
	}
}

// rulesArg reads inline rules given as a YAML/JSON string or an already
// decoded list. Absent rules return nil.
func rulesArg(args map[string]any) ([]domain.Rule, error) {
	var data []byte
	switch v := args["rules"].(type) {
	case nil:
		return nil, nil
	case string:
		if v == "" {
			return nil, nil
		}
		data = []byte(v)
	case []any:
		b, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("encoding rules: %w", err)
		}
		data = b
	default:
		return nil, errors.New("rules must be a JSON or YAML list")
	}

	rules, err := policy.ParseRules(data)
	if err != nil {
		return nil, fmt.Errorf("invalid rules: %w", err)
	}
	if rules == nil {
		rules = []domain.Rule{}
	}
	return rules, nil
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal results: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}
