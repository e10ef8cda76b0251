package llm

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"text/template"

	"gopkg.in/yaml.v3"

	"github.com/joseph-ayodele/menu-catalog/constants"
)

// DefaultInstruction is the built-in extraction instruction. It is rendered
// with .Categories (quoted, comma separated) and .Fallback.
const DefaultInstruction = `You are an expert at extracting data from images.
Analyse the image (a restaurant menu, a salon price table, a shop product list or a chat screenshot) and extract EVERY item or service that has a price.

--- VISUAL AND CONTEXT RULES ---
1. [GOAL]: Return a list of items (products or services) with Name, Value, Category and Description.
2. [PRICE ASSOCIATION]: Follow the visual layout. A price can sit to the right of the name, under the description, or in size columns (S, M, L). Attach each price to the right item.

--- EXPANSION RULE (MOST IMPORTANT) ---
When an item has several variants (sizes, tiers, combos) with different prices, output ONE SEPARATE record per variant and append the variant label to the name.
Example: "Pepperoni Pizza | S: $20.00 | M: $30.00" becomes
1. {"Name": "Pepperoni Pizza S", "Value": "$20.00", ...}
2. {"Name": "Pepperoni Pizza M", "Value": "$30.00", ...}
Example: "Cut | Hair: $30 | Hair+Beard: $50" becomes
1. {"Name": "Cut Hair", "Value": "$30", ...}
2. {"Name": "Cut Hair+Beard", "Value": "$50", ...}

--- TEXT FORMAT RULES ---
1. [Name]: Title Case, keeping short connectives lower case ("Chicken with Cheese and Bacon").
2. [Description]: Sentence case ("Tomato sauce, cheese and oregano. Comes with stuffed crust.").
   If there is no description, return an empty string.
3. [Value]: Copy the price text exactly as printed, currency symbol included.

--- CLASSIFICATION AND SELF-CORRECTION ---
1. [CATEGORY]: Classify every item into exactly one of these categories: {{.Categories}}.
   Use the section titles in the image to decide. If nothing fits, use "{{.Fallback}}".
2. [REVIEW]: The text may contain OCR mistakes. Before answering, act as a proofreader:
   when a word looks misspelled or is not a real word, correct it using the surrounding context and what is linguistically plausible.

--- OUTPUT ---
Return ALL items, following every rule above, in the requested JSON format.`

// PromptTemplate renders the extraction instruction. The template text and the
// category list are independent inputs.
type PromptTemplate struct {
	Instruction string `yaml:"instruction"`

	tmpl *template.Template
}

type promptData struct {
	Categories string
	Fallback   string
}

// NewPromptTemplate parses text; an empty text selects DefaultInstruction.
func NewPromptTemplate(text string) (*PromptTemplate, error) {
	if strings.TrimSpace(text) == "" {
		text = DefaultInstruction
	}
	t, err := template.New("instruction").Option("missingkey=error").Parse(text)
	if err != nil {
		return nil, fmt.Errorf("parse instruction template: %w", err)
	}
	return &PromptTemplate{Instruction: text, tmpl: t}, nil
}

// DefaultPromptTemplate returns the built-in template.
func DefaultPromptTemplate() *PromptTemplate {
	p, err := NewPromptTemplate(DefaultInstruction)
	if err != nil {
		panic(err)
	}
	return p
}

// LoadPromptTemplate reads a YAML file with an "instruction" key.
func LoadPromptTemplate(path string) (*PromptTemplate, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read prompt file: %w", err)
	}
	var doc PromptTemplate
	if err := yaml.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("decode prompt file: %w", err)
	}
	if strings.TrimSpace(doc.Instruction) == "" {
		return nil, fmt.Errorf("prompt file %q has no instruction", path)
	}
	return NewPromptTemplate(doc.Instruction)
}

// Render builds the instruction for one request.
func (p *PromptTemplate) Render(categories []string, fallback string) (string, error) {
	if fallback == "" {
		fallback = constants.DefaultFallbackCategory
	}
	quoted := make([]string, len(categories))
	for i, c := range categories {
		quoted[i] = fmt.Sprintf("%q", c)
	}

	var buf bytes.Buffer
	if err := p.tmpl.Execute(&buf, promptData{
		Categories: strings.Join(quoted, ", "),
		Fallback:   fallback,
	}); err != nil {
		return "", fmt.Errorf("render instruction: %w", err)
	}
	return buf.String(), nil
}
