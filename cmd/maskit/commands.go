package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/guillermoBallester/maskit/internal/adapter/policy"
	"github.com/guillermoBallester/maskit/internal/core/domain"
	"github.com/guillermoBallester/maskit/internal/core/service"
	"github.com/urfave/cli/v3"
)

func maskFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "mask", Aliases: []string{"m"}, Usage: "Named mask from the rule catalog or the store"},
		&cli.StringFlag{Name: "rules", Usage: "File holding a YAML or JSON list of rules"},
		&cli.BoolFlag{Name: "all", Usage: "Mask every primitive value"},
	}
}

func documentFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "input", Aliases: []string{"i"}, Usage: "JSON document to read (stdin when empty or -)"},
		&cli.StringFlag{Name: "param", Aliases: []string{"p"}, Usage: "JSON object passed to ignore conditions and mask functions"},
	}
}

func applyCommand() *cli.Command {
	return &cli.Command{
		Name:  "apply",
		Usage: "Mask a JSON document and print the result",
		Flags: append(append(maskFlags(), documentFlags()...),
			&cli.BoolFlag{Name: "log", Usage: "Also emit the masked document as a structured log record"},
		),
		Action: func(ctx context.Context, c *cli.Command) error {
			return withRuntime(ctx, c, func(rt *runtime) error {
				req, err := applyRequest(c)
				if err != nil {
					return err
				}
				if req.MaskName == "" && req.Rules == nil && !req.MaskAll {
					return fmt.Errorf("one of --mask, --rules or --all is required")
				}

				res, err := rt.masks.Apply(service.WithToolName(ctx, "cli"), req)
				if err != nil {
					return err
				}
				if c.Bool("log") {
					rt.masks.Log(ctx, "masked document", res.Document)
				}
				return printJSON(c, res.Document)
			})
		},
	}
}

func compileCommand() *cli.Command {
	return &cli.Command{
		Name:  "compile",
		Usage: "Print the portable form of a mask",
		Flags: maskFlags(),
		Action: func(ctx context.Context, c *cli.Command) error {
			return withRuntime(ctx, c, func(rt *runtime) error {
				var text string
				switch {
				case c.String("mask") != "":
					t, err := rt.masks.Describe(ctx, c.String("mask"))
					if err != nil {
						return err
					}
					text = t
				default:
					cm, err := compileFromFlags(c, rt.masks.Engine())
					if err != nil {
						return err
					}
					if text, err = domain.Serialize(cm); err != nil {
						return err
					}
				}
				return printJSON(c, json.RawMessage(text))
			})
		},
	}
}

func saveCommand() *cli.Command {
	return &cli.Command{
		Name:  "save",
		Usage: "Apply a mask to a sample document and save it under a name",
		Flags: append(append([]cli.Flag{
			&cli.StringFlag{Name: "name", Aliases: []string{"n"}, Usage: "Name to save the mask under", Required: true},
		}, maskFlags()...), documentFlags()...),
		Action: func(ctx context.Context, c *cli.Command) error {
			return withRuntime(ctx, c, func(rt *runtime) error {
				doc, param, err := readDocument(c)
				if err != nil {
					return err
				}
				ctx = service.WithToolName(ctx, "cli")
				name := c.String("name")

				var saved any
				if source := c.String("mask"); source != "" {
					rec, err := rt.masks.SaveNamed(ctx, source, name, doc, param)
					if err != nil {
						return err
					}
					saved = recordView(rec.Name, rec.MaskedFields, rec.SerializedMask)
				} else {
					cm, err := compileFromFlags(c, rt.masks.Engine())
					if err != nil {
						return err
					}
					rec, err := rt.masks.Save(ctx, name, cm, doc, param)
					if err != nil {
						return err
					}
					saved = recordView(rec.Name, rec.MaskedFields, rec.SerializedMask)
				}
				return printJSON(c, saved)
			})
		},
	}
}

func showCommand() *cli.Command {
	return &cli.Command{
		Name:      "show",
		Usage:     "Show a saved mask",
		ArgsUsage: "<name>",
		Action: func(ctx context.Context, c *cli.Command) error {
			name := c.Args().First()
			if name == "" {
				return fmt.Errorf("mask name is required")
			}
			return withRuntime(ctx, c, func(rt *runtime) error {
				_, rec, err := rt.masks.Load(ctx, name)
				if err != nil {
					return err
				}
				return printJSON(c, map[string]any{
					"name":          rec.Name,
					"masked_fields": rec.MaskedFields,
					"mask":          json.RawMessage(rec.SerializedMask),
					"created_at":    rec.CreatedAt,
					"updated_at":    rec.UpdatedAt,
				})
			})
		},
	}
}

func listCommand() *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "List catalog and saved masks",
		Action: func(ctx context.Context, c *cli.Command) error {
			return withRuntime(ctx, c, func(rt *runtime) error {
				infos, err := rt.masks.List(ctx)
				if err != nil {
					return err
				}
				return printJSON(c, infos)
			})
		},
	}
}

func deleteCommand() *cli.Command {
	return &cli.Command{
		Name:      "delete",
		Usage:     "Delete a saved mask",
		ArgsUsage: "<name>",
		Action: func(ctx context.Context, c *cli.Command) error {
			name := c.Args().First()
			if name == "" {
				return fmt.Errorf("mask name is required")
			}
			return withRuntime(ctx, c, func(rt *runtime) error {
				if err := rt.masks.Delete(ctx, name); err != nil {
					return err
				}
				_, err := fmt.Fprintf(c.Root().Writer, "deleted %s\n", name)
				return err
			})
		},
	}
}

// withRuntime wires the services for one command and releases them afterwards.
func withRuntime(ctx context.Context, c *cli.Command, fn func(rt *runtime) error) error {
	rt, err := setup(ctx, c)
	if err != nil {
		return err
	}
	runErr := fn(rt)
	if err := rt.close(ctx); err != nil && runErr == nil {
		return err
	}
	return runErr
}

func applyRequest(c *cli.Command) (service.ApplyRequest, error) {
	doc, param, err := readDocument(c)
	if err != nil {
		return service.ApplyRequest{}, err
	}
	req := service.ApplyRequest{
		MaskName: c.String("mask"),
		MaskAll:  c.Bool("all"),
		Document: doc,
		Param:    param,
	}
	if path := c.String("rules"); path != "" {
		if req.Rules, err = readRules(path); err != nil {
			return service.ApplyRequest{}, err
		}
	}
	return req, nil
}

func compileFromFlags(c *cli.Command, e *domain.Engine) (*domain.CompiledMask, error) {
	if c.Bool("all") {
		return e.CompileAll(), nil
	}
	path := c.String("rules")
	if path == "" {
		return nil, fmt.Errorf("one of --mask, --rules or --all is required")
	}
	rules, err := readRules(path)
	if err != nil {
		return nil, err
	}
	return e.Compile(rules)
}

func readRules(path string) ([]domain.Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading rules file: %w", err)
	}
	rules, err := policy.ParseRules(data)
	if err != nil {
		return nil, err
	}
	if rules == nil {
		rules = []domain.Rule{}
	}
	return rules, nil
}

// readDocument reads the input document and the optional param. Numbers are
// kept as json.Number so integers round-trip unchanged.
func readDocument(c *cli.Command) (domain.Document, domain.Param, error) {
	var r io.Reader = c.Root().Reader
	if r == nil {
		r = os.Stdin
	}
	if path := c.String("input"); path != "" && path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, nil, fmt.Errorf("opening input: %w", err)
		}
		defer f.Close()
		r = f
	}

	var doc domain.Document
	if err := decodeObject(r, &doc); err != nil {
		return nil, nil, fmt.Errorf("decoding document: %w", err)
	}

	var param domain.Param
	if p := c.String("param"); p != "" {
		if err := decodeObject(bytes.NewReader([]byte(p)), &param); err != nil {
			return nil, nil, fmt.Errorf("decoding param: %w", err)
		}
	}
	return doc, param, nil
}

func decodeObject(r io.Reader, v any) error {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	return dec.Decode(v)
}

func recordView(name string, masked []string, serialized string) map[string]any {
	if masked == nil {
		masked = []string{}
	}
	return map[string]any{
		"name":          name,
		"masked_fields": masked,
		"mask":          json.RawMessage(serialized),
	}
}

func printJSON(c *cli.Command, v any) error {
	w := c.Root().Writer
	if w == nil {
		w = os.Stdout
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
