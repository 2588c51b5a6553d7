package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/labreport/labreport/internal/config"
	"github.com/labreport/labreport/internal/domain/labreport"
	"github.com/labreport/labreport/internal/platform/export"
	"github.com/labreport/labreport/internal/platform/textsource"
)

type parseOptions struct {
	format string
	out    string
	age    int
	sex    string
	black  bool
}

// profile applies the flag overrides on top of base. Zero age keeps base.Age.
func (o parseOptions) profile(base labreport.Profile) (labreport.Profile, error) {
	p := base
	if o.age != 0 {
		p.Age = o.age
	}
	switch strings.ToLower(o.sex) {
	case "":
	case "female", "f":
		p.Female = true
	case "male", "m":
		p.Female = false
	default:
		return p, fmt.Errorf("--sex must be female or male, got %q", o.sex)
	}
	if o.black {
		p.Black = true
	}
	if err := p.Validate(); err != nil {
		return p, err
	}
	return p, nil
}

func parseCmd() *cobra.Command {
	var opts parseOptions
	cmd := &cobra.Command{
		Use:   "parse <file>",
		Short: "Parse a lab report file without a database",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if opts.out != "" {
				f, err := os.Create(opts.out)
				if err != nil {
					return err
				}
				defer f.Close()
				out = f
			}
			return runParse(out, textsource.New(cfg.MaxDocumentBytes), filepath.Base(args[0]), data, cfg.EGFRProfile(), opts)
		},
	}
	cmd.Flags().StringVar(&opts.format, "format", "json", "Output format: json, txt or docx")
	cmd.Flags().StringVarP(&opts.out, "out", "o", "", "Write the output to a file instead of stdout")
	cmd.Flags().IntVar(&opts.age, "age", 0, "Patient age used for eGFR")
	cmd.Flags().StringVar(&opts.sex, "sex", "", "Patient sex used for eGFR (female or male)")
	cmd.Flags().BoolVar(&opts.black, "black", false, "Apply the black race coefficient to eGFR")
	return cmd
}

func runParse(w io.Writer, x *textsource.Extractor, filename string, data []byte, base labreport.Profile, opts parseOptions) error {
	p, err := opts.profile(base)
	if err != nil {
		return err
	}
	text, err := x.Extract(filename, data)
	if err != nil {
		return err
	}
	res, err := labreport.Parse(text, p)
	if err != nil {
		return err
	}

	if strings.EqualFold(opts.format, "json") {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}
	f, err := export.ParseFormat(opts.format)
	if err != nil {
		return err
	}
	body, err := export.Render(res, f)
	if err != nil {
		return err
	}
	_, err = w.Write(body)
	return err
}
