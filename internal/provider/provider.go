// Package provider supplies parameterized test inputs (queries, API keys)
// to concurrent workers in round-robin order.
package provider

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"sync"
)

// RoundRobin hands out values from an ordered list, cycling back to the
// start after the last one. Safe for concurrent use.
type RoundRobin struct {
	mu       sync.Mutex
	values   []string
	index    int
	fallback string
}

// New creates a provider over values. If values is empty and fallback is
// non-empty, the provider serves the fallback value instead.
func New(values []string, fallback string) *RoundRobin {
	vs := make([]string, 0, len(values))
	for _, v := range values {
		if v != "" {
			vs = append(vs, v)
		}
	}
	if len(vs) == 0 && fallback != "" {
		vs = append(vs, fallback)
	}
	return &RoundRobin{values: vs, fallback: fallback}
}

// NewFromFile loads one value per line, skipping blank lines. On read
// failure it returns a provider that serves only the fallback, plus the
// error so the caller can warn about it.
func NewFromFile(path, fallback string) (*RoundRobin, error) {
	f, err := os.Open(path)
	if err != nil {
		return New(nil, fallback), fmt.Errorf("failed to open param file: %w", err)
	}
	defer f.Close()

	var values []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			values = append(values, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return New(nil, fallback), fmt.Errorf("failed to read param file: %w", err)
	}
	return New(values, fallback), nil
}

// Next returns the next value in rotation. When the provider holds no
// values it returns the fallback, which may be empty.
func (p *RoundRobin) Next() string {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.values) == 0 {
		return p.fallback
	}
	v := p.values[p.index]
	p.index = (p.index + 1) % len(p.values)
	return v
}

// Len returns the number of loaded values.
func (p *RoundRobin) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.values)
}
