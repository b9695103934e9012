package config

import (
	"errors"
	"fmt"
	"strings"
)

// DefaultRoleName is the role that cannot be deleted
const DefaultRoleName = "General Assistant"

var (
	ErrRoleNotFound = errors.New("role not found")
	ErrRoleExists   = errors.New("role already exists")
	ErrDefaultRole  = errors.New("the default role cannot be deleted")
)

// Role is a named prompt preset. Temperature and MaxTokens override the
// global values when set.
type Role struct {
	Name         string   `toml:"name" json:"name"`
	Description  string   `toml:"description" json:"description"`
	InputPrompt  string   `toml:"input_prompt" json:"input_prompt"`
	OutputPrompt string   `toml:"output_prompt" json:"output_prompt"`
	Temperature  *float64 `toml:"temperature,omitempty" json:"temperature,omitempty"`
	MaxTokens    *int     `toml:"max_tokens,omitempty" json:"max_tokens,omitempty"`
}

func (r Role) clone() Role {
	if r.Temperature != nil {
		t := *r.Temperature
		r.Temperature = &t
	}
	if r.MaxTokens != nil {
		n := *r.MaxTokens
		r.MaxTokens = &n
	}
	return r
}

func float(v float64) *float64 { return &v }
func integer(v int) *int       { return &v }

// DefaultRoles returns the built-in presets
func DefaultRoles() []Role {
	return []Role{
		{
			Name:        DefaultRoleName,
			Description: "A general purpose assistant",
			InputPrompt: "You are a helpful assistant. You should:\n" +
				"1. Give accurate, useful answers\n" +
				"2. Use clear, plain language\n" +
				"3. Give examples where they help\n" +
				"4. Stay professional and friendly",
			OutputPrompt: "When answering:\n" +
				"1. Do not use formatting symbols such as *, # or `\n" +
				"2. Do not use bullet symbols such as • or ■\n" +
				"3. Number list items instead of using bullets\n" +
				"4. Keep the text short and plain",
			Temperature: float(0.7),
			MaxTokens:   integer(2000),
		},
		{
			Name:        "Code Expert",
			Description: "Focused on programming questions",
			InputPrompt: "You are an expert programmer familiar with many languages and software engineering practice. You should:\n" +
				"1. Give accurate technical advice\n" +
				"2. Explain how code works\n" +
				"3. Consider performance, security and maintainability\n" +
				"4. Suggest suitable designs",
			OutputPrompt: "When giving code and advice:\n" +
				"1. Do not use formatting symbols\n" +
				"2. Indent code examples with spaces only\n" +
				"3. Number the key points\n" +
				"4. Comment the important parts of the code",
			Temperature: float(0.3),
			MaxTokens:   integer(4000),
		},
		{
			Name:        "Copywriter",
			Description: "Focused on writing and editing",
			InputPrompt: "You are a professional copywriter. You should:\n" +
				"1. Use precise, elegant language\n" +
				"2. Match the style of the surrounding text\n" +
				"3. Keep the structure logical\n" +
				"4. Make the text readable and engaging",
			OutputPrompt: "When writing:\n" +
				"1. Output plain text without formatting symbols\n" +
				"2. Do not use decorative symbols\n" +
				"3. Separate paragraphs with a line break\n" +
				"4. Keep the layout tidy",
			Temperature: float(0.9),
			MaxTokens:   integer(3000),
		},
	}
}

func (c *Config) findRole(name string) (int, bool) {
	for i, r := range c.Roles {
		if r.Name == name {
			return i, true
		}
	}
	return -1, false
}

// ActiveRole returns the current role, falling back to the first one
func (c *Config) ActiveRole() Role {
	if i, ok := c.findRole(c.CurrentRole); ok {
		return c.Roles[i]
	}
	if len(c.Roles) > 0 {
		return c.Roles[0]
	}
	return DefaultRoles()[0]
}

// Sampling returns the temperature and max tokens for the current role
func (c *Config) Sampling() (temperature float64, maxTokens int) {
	temperature, maxTokens = c.Temperature, c.MaxTokens

	role := c.ActiveRole()
	if role.Temperature != nil {
		temperature = *role.Temperature
	}
	if role.MaxTokens != nil {
		maxTokens = *role.MaxTokens
	}
	return temperature, maxTokens
}

// AddRole appends a new role
func (c *Config) AddRole(r Role) error {
	r.Name = strings.TrimSpace(r.Name)
	if r.Name == "" {
		return fmt.Errorf("role name is required")
	}
	if _, ok := c.findRole(r.Name); ok {
		return fmt.Errorf("%w: %s", ErrRoleExists, r.Name)
	}
	c.Roles = append(c.Roles, r)
	return nil
}

// UpdateRole replaces the role called name. Renaming is allowed as long as
// the new name is free.
func (c *Config) UpdateRole(name string, r Role) error {
	i, ok := c.findRole(name)
	if !ok {
		return fmt.Errorf("%w: %s", ErrRoleNotFound, name)
	}

	r.Name = strings.TrimSpace(r.Name)
	if r.Name == "" {
		r.Name = name
	}
	if r.Name != name {
		if name == DefaultRoleName {
			return ErrDefaultRole
		}
		if _, taken := c.findRole(r.Name); taken {
			return fmt.Errorf("%w: %s", ErrRoleExists, r.Name)
		}
		if c.CurrentRole == name {
			c.CurrentRole = r.Name
		}
	}

	c.Roles[i] = r
	return nil
}

// DeleteRole removes a role. Deleting the current role selects the
// default one.
func (c *Config) DeleteRole(name string) error {
	if name == DefaultRoleName {
		return ErrDefaultRole
	}
	i, ok := c.findRole(name)
	if !ok {
		return fmt.Errorf("%w: %s", ErrRoleNotFound, name)
	}

	c.Roles = append(c.Roles[:i], c.Roles[i+1:]...)
	if c.CurrentRole == name {
		c.CurrentRole = DefaultRoleName
		if _, ok := c.findRole(DefaultRoleName); !ok && len(c.Roles) > 0 {
			c.CurrentRole = c.Roles[0].Name
		}
	}
	return nil
}

// SetCurrentRole selects the role used by the next activation
func (c *Config) SetCurrentRole(name string) error {
	if _, ok := c.findRole(name); !ok {
		return fmt.Errorf("%w: %s", ErrRoleNotFound, name)
	}
	c.CurrentRole = name
	return nil
}
