package capability

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/vishal2002series1/synthetic-data-kit-with-trajectory/models"
	"gopkg.in/yaml.v3"
)

// SearchKnowledgeBase is the one tool with real behavior; it is backed by the retriever.
const SearchKnowledgeBase = "search_knowledge_base"

// ToolCard is a catalog entry as stored on disk. Version and Signature are
// optional; when several cards share a name the highest version wins.
type ToolCard struct {
	Name        string                 `json:"name" yaml:"name"`
	Version     string                 `json:"version,omitempty" yaml:"version,omitempty"`
	Description string                 `json:"description" yaml:"description"`
	Parameters  map[string]interface{} `json:"parameters" yaml:"parameters"`
	Signature   string                 `json:"signature,omitempty" yaml:"signature,omitempty"`
}

// Descriptor strips storage-only fields.
func (tc ToolCard) Descriptor() models.ToolDescriptor {
	params := tc.Parameters
	if params == nil {
		params = map[string]interface{}{}
	}
	return models.ToolDescriptor{Name: tc.Name, Description: tc.Description, Parameters: params}
}

type catalogFile struct {
	Tools []ToolCard `json:"tools" yaml:"tools"`
}

// Catalog is the read-only set of tools available to the decision policy.
type Catalog struct {
	order   []string
	tools   map[string]models.ToolDescriptor
	schemas map[string]*jsonschema.Schema
}

// ErrToolMissing indicates a tool is not registered.
var ErrToolMissing = fmt.Errorf("tool missing")

// NewCatalog validates cards and keeps the latest version per name, in first-seen order.
// Cards with an invalid signature are dropped and reported through logger.
func NewCatalog(cards []ToolCard, signingSecret string, logger *log.Logger) *Catalog {
	if logger == nil {
		logger = log.New(log.Writer(), "[CATALOG] ", log.LstdFlags)
	}
	cat := &Catalog{tools: make(map[string]models.ToolDescriptor), schemas: make(map[string]*jsonschema.Schema)}
	versions := make(map[string]string)
	for _, tc := range cards {
		tc.Name = strings.TrimSpace(tc.Name)
		if tc.Name == "" {
			logger.Printf("skipping tool without name")
			continue
		}
		if err := validateSignature(tc, signingSecret); err != nil {
			logger.Printf("skipping tool %s@%s: signature invalid: %v", tc.Name, tc.Version, err)
			continue
		}
		existing, ok := versions[tc.Name]
		if ok && !versionGreater(tc.Version, existing) {
			continue
		}
		schema, err := CompileParameters(tc)
		if err != nil {
			logger.Printf("skipping tool %s@%s: %v", tc.Name, tc.Version, err)
			continue
		}
		if !ok {
			cat.order = append(cat.order, tc.Name)
		}
		versions[tc.Name] = tc.Version
		cat.tools[tc.Name] = tc.Descriptor()
		if schema != nil {
			cat.schemas[tc.Name] = schema
		} else {
			delete(cat.schemas, tc.Name)
		}
	}
	return cat
}

// LoadCatalog reads tool cards from a JSON or YAML file. A missing or
// unparsable file yields an empty catalog and a warning, never an error.
func LoadCatalog(path, signingSecret string, logger *log.Logger) *Catalog {
	if logger == nil {
		logger = log.New(log.Writer(), "[CATALOG] ", log.LstdFlags)
	}
	cards, err := readCards(path)
	if err != nil {
		logger.Printf("warning: tool definitions unavailable (%v); continuing with empty catalog", err)
		return NewCatalog(nil, signingSecret, logger)
	}
	cat := NewCatalog(cards, signingSecret, logger)
	logger.Printf("loaded %d tools from %s", cat.Len(), path)
	return cat
}

func readCards(path string) ([]ToolCard, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("no tool definitions file configured")
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var file catalogFile
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(raw, &file); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	default:
		trimmed := strings.TrimSpace(string(raw))
		if strings.HasPrefix(trimmed, "[") {
			if err := json.Unmarshal(raw, &file.Tools); err != nil {
				return nil, fmt.Errorf("parse %s: %w", path, err)
			}
		} else if err := json.Unmarshal(raw, &file); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}
	return file.Tools, nil
}

// All returns the descriptors in load order.
func (c *Catalog) All() []models.ToolDescriptor {
	if c == nil {
		return nil
	}
	out := make([]models.ToolDescriptor, 0, len(c.order))
	for _, name := range c.order {
		out = append(out, c.tools[name])
	}
	return out
}

// Lookup returns the descriptor for name.
func (c *Catalog) Lookup(name string) (models.ToolDescriptor, bool) {
	if c == nil {
		return models.ToolDescriptor{}, false
	}
	td, ok := c.tools[name]
	return td, ok
}

// Require reports the first name that is not in the catalog.
func (c *Catalog) Require(names ...string) error {
	for _, n := range names {
		if _, ok := c.Lookup(n); !ok {
			return fmt.Errorf("%w: %s", ErrToolMissing, n)
		}
	}
	return nil
}

func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.order)
}

// Names returns the sorted tool names.
func (c *Catalog) Names() []string {
	if c == nil {
		return nil
	}
	out := append([]string(nil), c.order...)
	sort.Strings(out)
	return out
}

// ComputeChecksum returns a deterministic hash of the card payload (excluding signature).
func ComputeChecksum(tc ToolCard) (string, error) {
	payload := map[string]interface{}{
		"name":        tc.Name,
		"version":     tc.Version,
		"description": tc.Description,
		"parameters":  tc.Parameters,
	}
	normalized, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(normalized)
	return hex.EncodeToString(sum[:]), nil
}

// SignToolCard computes an HMAC signature using the signing secret.
func SignToolCard(tc ToolCard, secret string) (string, error) {
	if secret == "" {
		return "", fmt.Errorf("signing secret is empty")
	}
	checksum, err := ComputeChecksum(tc)
	if err != nil {
		return "", err
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(checksum))
	return hex.EncodeToString(mac.Sum(nil)), nil
}

func validateSignature(tc ToolCard, secret string) error {
	if secret == "" {
		return nil
	}
	expected, err := SignToolCard(tc, secret)
	if err != nil {
		return err
	}
	if !hmac.Equal([]byte(expected), []byte(tc.Signature)) {
		return fmt.Errorf("signature mismatch")
	}
	return nil
}

func versionGreater(a, b string) bool {
	if a == b {
		return false
	}
	return compareVersions(splitVersion(a), splitVersion(b)) > 0
}

func splitVersion(v string) []int {
	parts := strings.Split(strings.TrimPrefix(v, "v"), ".")
	out := make([]int, len(parts))
	for i, p := range parts {
		fmt.Sscanf(p, "%d", &out[i])
	}
	return out
}

func compareVersions(a, b []int) int {
	n := len(a)
	if len(b) > n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		ai, bi := 0, 0
		if i < len(a) {
			ai = a[i]
		}
		if i < len(b) {
			bi = b[i]
		}
		if ai > bi {
			return 1
		}
		if ai < bi {
			return -1
		}
	}
	return 0
}
