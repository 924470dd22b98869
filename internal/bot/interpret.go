package bot

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"gmatbot/internal/domain"

	"gopkg.in/yaml.v3"
)

// Interpreter maps free-form chat text to a category request. Matching is
// total and deterministic: the same text always yields the same result.
type Interpreter struct {
	aliases map[string]domain.Category
}

// defaultAliases covers the short codes and long names users actually type.
// Reading Comprehension is absent on purpose: passage-based questions have no
// single-image rendering, so "rc" falls through to the help reply.
func defaultAliases() map[string]domain.Category {
	return map[string]domain.Category{
		"ps":                  domain.CategoryProblemSolving,
		"problem solving":     domain.CategoryProblemSolving,
		"ds":                  domain.CategoryDataSufficiency,
		"data sufficiency":    domain.CategoryDataSufficiency,
		"cr":                  domain.CategoryCriticalReasoning,
		"critical reasoning":  domain.CategoryCriticalReasoning,
		"sc":                  domain.CategorySentenceCorrection,
		"sentence correction": domain.CategorySentenceCorrection,
		"any":                 domain.CategoryUnknown,
		"random":              domain.CategoryUnknown,
	}
}

// NewInterpreter builds an interpreter from the built-in aliases, optionally
// merged with operator-defined aliases from a YAML file. File entries win
// over built-ins.
func NewInterpreter(aliasFile string, logger *slog.Logger) (*Interpreter, error) {
	aliases := defaultAliases()

	if aliasFile != "" {
		extra, err := loadAliasFile(aliasFile, logger)
		if err != nil {
			return nil, err
		}
		for alias, cat := range extra {
			aliases[alias] = cat
		}
	}

	return &Interpreter{aliases: aliases}, nil
}

// loadAliasFile reads a flat YAML mapping of alias text to category code
// (PS, DS, CR, SC, or ANY). Entries with unknown codes are skipped with a
// warning so one typo cannot take the whole alias file down.
func loadAliasFile(path string, logger *slog.Logger) (map[string]domain.Category, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		logger.Debug("alias file does not exist, using built-in aliases", "path", path)
		return nil, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read alias file: %w", err)
	}

	var raw map[string]string
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse alias file %s: %w", path, err)
	}

	out := make(map[string]domain.Category, len(raw))
	for alias, code := range raw {
		cat, ok := categoryByCode(code)
		if !ok {
			logger.Warn("alias maps to unknown category, skipping", "alias", alias, "category", code)
			continue
		}
		out[normalize(alias)] = cat
	}
	return out, nil
}

func categoryByCode(code string) (domain.Category, bool) {
	switch strings.ToUpper(strings.TrimSpace(code)) {
	case "PS":
		return domain.CategoryProblemSolving, true
	case "DS":
		return domain.CategoryDataSufficiency, true
	case "CR":
		return domain.CategoryCriticalReasoning, true
	case "SC":
		return domain.CategorySentenceCorrection, true
	case "ANY":
		return domain.CategoryUnknown, true
	}
	return domain.CategoryUnknown, false
}

// Interpret resolves text to a category request. ok is false when the text
// matches nothing, in which case the caller sends the help reply. A
// recognized "any" alias returns (CategoryUnknown, true): any dispatchable
// category.
func (in *Interpreter) Interpret(text string) (cat domain.Category, ok bool) {
	norm := normalize(text)
	if norm == "" {
		return domain.CategoryUnknown, false
	}

	if cat, ok := in.aliases[norm]; ok {
		return cat, true
	}

	// "ps please" and friends: the first word decides.
	if first, _, found := strings.Cut(norm, " "); found {
		if cat, ok := in.aliases[first]; ok {
			return cat, true
		}
	}

	return domain.CategoryUnknown, false
}

func normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
