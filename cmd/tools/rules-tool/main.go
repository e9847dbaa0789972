// cmd/tools/rules-tool/main.go
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"

	"sme-cyber-assessment/internal/assessment"
)

func main() {
	validateCmd := flag.NewFlagSet("validate", flag.ExitOnError)
	exportCmd := flag.NewFlagSet("export", flag.ExitOnError)
	schemaCmd := flag.NewFlagSet("schema", flag.ExitOnError)
	evalCmd := flag.NewFlagSet("evaluate", flag.ExitOnError)

	validatePath := validateCmd.String("path", "", "Rules file (empty = built-in rules)")

	exportOut := exportCmd.String("out", "", "Write the built-in rules here instead of stdout")

	schemaPath := schemaCmd.String("path", "", "Rules file (empty = built-in rules)")

	evalPath := evalCmd.String("path", "", "Rules file (empty = built-in rules)")
	evalAnswers := evalCmd.String("answers", "", "JSON file with question id -> answer text")
	evalProfile := evalCmd.String("profile", "", "Optional JSON file with the business profile")

	if len(os.Args) < 2 {
		help()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "validate":
		validateCmd.Parse(os.Args[2:])
		err = validate(*validatePath, os.Stdout)

	case "export":
		exportCmd.Parse(os.Args[2:])
		err = export(*exportOut)

	case "schema":
		schemaCmd.Parse(os.Args[2:])
		err = schema(*schemaPath, os.Stdout)

	case "evaluate":
		evalCmd.Parse(os.Args[2:])
		if *evalAnswers == "" {
			fmt.Println("Error: -answers is required for evaluate.")
			evalCmd.Usage()
			os.Exit(1)
		}
		err = evaluate(*evalPath, *evalAnswers, *evalProfile, os.Stdout)

	case "help":
		fallthrough
	default:
		help()
		return
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func validate(path string, w io.Writer) error {
	rules, err := assessment.LoadFile(path)
	if err != nil {
		return err
	}
	scored := 0
	for _, q := range rules.Questions {
		if q.Scored {
			scored++
		}
	}
	fmt.Fprintf(w, "Rules %s are valid.\n", rules.Version)
	fmt.Fprintf(w, "  policy:          %s\n", rules.OverallPolicy)
	fmt.Fprintf(w, "  sections:        %d\n", len(rules.Sections))
	fmt.Fprintf(w, "  questions:       %d (%d scored)\n", len(rules.Questions), scored)
	fmt.Fprintf(w, "  topics:          %d\n", len(rules.Topics))
	fmt.Fprintf(w, "  bands:           %d\n", len(rules.Bands))
	fmt.Fprintf(w, "  recommendations: %d\n", len(rules.Recommendations))
	return nil
}

func export(out string) error {
	data := assessment.DefaultYAML()
	if out == "" {
		_, err := os.Stdout.Write(data)
		return err
	}
	if err := os.WriteFile(out, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", out, err)
	}
	fmt.Printf("Wrote built-in rules to %s\n", out)
	return nil
}

func schema(path string, w io.Writer) error {
	rules, err := assessment.LoadFile(path)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(rules.AnswersSchema())
}

func evaluate(path, answersPath, profilePath string, w io.Writer) error {
	rules, err := assessment.LoadFile(path)
	if err != nil {
		return err
	}

	var raw map[string]string
	if err := readJSON(answersPath, &raw); err != nil {
		return err
	}
	answers, err := rules.ParseAnswers(raw)
	if err != nil {
		return err
	}

	profile := assessment.DefaultProfile()
	if profilePath != "" {
		if err := readJSON(profilePath, &profile); err != nil {
			return err
		}
		if err := profile.Validate(); err != nil {
			return err
		}
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(assessment.Evaluate(rules, answers, profile))
}

func readJSON(path string, v interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

func help() {
	fmt.Println("Usage: rules-tool <command> [arguments]")
	fmt.Println("")
	fmt.Println("Commands:")
	fmt.Println("  validate   Check a rules file and print a summary")
	fmt.Println("  export     Write the built-in rules as YAML")
	fmt.Println("  schema     Print the JSON Schema for an answers payload")
	fmt.Println("  evaluate   Score an answers file and print the report")
	fmt.Println("  help       Show this message")
}
