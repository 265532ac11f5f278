// Package config loads the workload description consumed by the code
// generator: hardware topology, memory map, delay table, per-PE schedules
// and named functions.
//
// A Config is immutable once loaded and safe to share between goroutines.
package config

import (
	"fmt"
	"os"
	"slices"

	"github.com/samber/lo"
	"go.yaml.in/yaml/v3"
)

// DefaultDelaySlots is the length of the zero delay table used when
// delay_start is absent.
const DefaultDelaySlots = 64

// Config is a loaded workload description.
type Config struct {
	Hardware   HardwareConfig
	Memory     MemoryConfig
	Delays     DelayTable
	Scheduling Scheduling
	Functions  FunctionTable
}

// HardwareConfig describes the PE cluster topology.
type HardwareConfig struct {
	TotalPEs      int
	ClustersCount int
	PEsPerCluster int
	DataDup       int

	// MemOffsets holds the psrf_mem_offset entries keyed "<register>_offset".
	MemOffsets map[string]int32
}

// Cluster returns the cluster index of a PE, 0 when pes_per_cluster is not
// positive.
func (h HardwareConfig) Cluster(pe int) int {
	if h.PEsPerCluster <= 0 {
		return 0
	}
	return pe / h.PEsPerCluster
}

// MemoryConfig maps base registers to their addresses and per-cluster
// strides.
type MemoryConfig struct {
	Bases   map[string]int32
	Offsets map[string]int32
}

// Base returns the configured base address of reg.
func (m MemoryConfig) Base(reg string) (int32, bool) {
	v, ok := m.Bases[reg]
	return v, ok
}

// Stride returns the per-cluster stride of reg, 0 if none is configured.
func (m MemoryConfig) Stride(reg string) int32 {
	return m.Offsets[reg+"_offset"]
}

// Registers lists the base registers with a nonzero address in ascending
// name order.
func (m MemoryConfig) Registers() []string {
	regs := lo.Keys(lo.PickBy(m.Bases, func(_ string, v int32) bool { return v != 0 }))
	slices.Sort(regs)
	return regs
}

// DelayTable holds the NOP padding for each PE id.
type DelayTable []int

// Delay returns the padding for pe, 0 past the end of the table.
func (d DelayTable) Delay(pe int) int {
	if pe < 0 || pe >= len(d) {
		return 0
	}
	return d[pe]
}

// Scheduling holds the template schedules shared by every cluster.
type Scheduling struct {
	MinimumPEsRequired int
	Assignments        []PEAssignment
}

// Template returns the schedule whose pe_id is basePE. This differs from
// positional indexing of pe_assignments when pe_ids are out of order.
func (s Scheduling) Template(basePE int) (*PEAssignment, bool) {
	for i := range s.Assignments {
		if s.Assignments[i].PEID == basePE {
			return &s.Assignments[i], true
		}
	}
	return nil, false
}

// PEAssignment is the instruction schedule of one PE.
type PEAssignment struct {
	PEID         int
	Instructions []Instruction

	HasPSRFMem bool // contains psrf-mem-type entries
	HasMem     bool // contains mem-type entries
	HasHWL     bool // contains hwl-type entries

	// BaseRegisters are the registers named as base_address by memory
	// entries, ascending.
	BaseRegisters []string
}

// References reports whether reg is used as a base register.
func (a *PEAssignment) References(reg string) bool {
	_, found := slices.BinarySearch(a.BaseRegisters, reg)
	return found
}

// Function is a named routine appended to the PEs that implement it.
type Function struct {
	Name    string
	Address int32
	Bodies  map[int][]Instruction // by PE id
}

// Body returns the instructions of the function on pe.
func (f Function) Body(pe int) ([]Instruction, bool) {
	b, ok := f.Bodies[pe]
	return b, ok
}

// FunctionTable lists functions in ascending name order.
type FunctionTable []Function

// Lookup finds a function by name.
func (t FunctionTable) Lookup(name string) (Function, bool) {
	return lo.Find(t, func(f Function) bool { return f.Name == name })
}

// LoadConfig reads and validates a workload description from a YAML file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	c, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}

	return c, nil
}

// Parse decodes a workload description. Missing required keys and values
// of the wrong type are reported as *Fault.
func Parse(data []byte) (*Config, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWrongType, err)
	}
	root := newTree(&doc)
	if root.n == nil || root.n.Kind != yaml.MappingNode {
		return nil, &Fault{Key: "(root)", Err: fmt.Errorf("%w: want a mapping", ErrWrongType)}
	}

	c := &Config{}
	steps := []func(tree) error{
		c.parseMemory,
		c.parseDelays,
		c.parseHardware,
		c.parseScheduling,
		c.parseFunctions,
	}
	for _, step := range steps {
		if err := step(root); err != nil {
			return nil, err
		}
	}

	c.Memory.Offsets = c.Hardware.MemOffsets
	return c, nil
}

// parseIntMap reads a mapping of name to integer, skipping null values.
func parseIntMap(t tree, key string) (map[string]int32, error) {
	out := map[string]int32{}

	m, ok := t.child(key)
	if !ok {
		return out, nil
	}
	entries, err := m.entries()
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		if e.value.isNull() {
			continue
		}
		if out[e.key], err = e.value.asInt32(); err != nil {
			return nil, err
		}
	}

	return out, nil
}

func (c *Config) parseMemory(root tree) error {
	var err error
	c.Memory.Bases, err = parseIntMap(root, "mem_config")
	return err
}

func (c *Config) parseDelays(root tree) error {
	d, ok := root.child("delay_start")
	if !ok {
		c.Delays = make(DelayTable, DefaultDelaySlots)
		return nil
	}

	items, err := d.items()
	if err != nil {
		return err
	}
	c.Delays = make(DelayTable, len(items))
	for i, it := range items {
		if c.Delays[i], err = it.asInt(); err != nil {
			return err
		}
	}
	return nil
}

func (c *Config) parseHardware(root tree) error {
	hw, err := root.require("hardware_config")
	if err != nil {
		return err
	}
	clusters, err := hw.require("clusters")
	if err != nil {
		return err
	}

	h := &c.Hardware
	fields := []struct {
		t   tree
		key string
		dst *int
	}{
		{hw, "total_pes", &h.TotalPEs},
		{clusters, "count", &h.ClustersCount},
		{clusters, "pes_per_cluster", &h.PEsPerCluster},
		{hw, "data_dup", &h.DataDup},
	}
	for _, f := range fields {
		if *f.dst, err = f.t.requireInt(f.key); err != nil {
			return err
		}
	}

	h.MemOffsets, err = parseIntMap(hw, "psrf_mem_offset")
	return err
}

func (c *Config) parseScheduling(root tree) error {
	s, err := root.require("scheduling")
	if err != nil {
		return err
	}
	if c.Scheduling.MinimumPEsRequired, err = s.requireInt("minimum_pes_required"); err != nil {
		return err
	}

	list, ok := s.child("pe_assignments")
	if !ok {
		return nil
	}
	items, err := list.items()
	if err != nil {
		return err
	}

	for _, it := range items {
		a, err := parseAssignment(it)
		if err != nil {
			return err
		}
		c.Scheduling.Assignments = append(c.Scheduling.Assignments, a)
	}
	return nil
}

func parseAssignment(t tree) (PEAssignment, error) {
	id, err := t.requireInt("pe_id")
	if err != nil {
		return PEAssignment{}, err
	}
	a := PEAssignment{PEID: id}

	list, ok := t.child("instructions")
	if !ok {
		return a, nil
	}
	items, err := list.items()
	if err != nil {
		return PEAssignment{}, err
	}

	for _, it := range items {
		inst, err := parseInstruction(it)
		if err != nil {
			return PEAssignment{}, err
		}
		a.add(inst)
	}

	slices.Sort(a.BaseRegisters)
	a.BaseRegisters = slices.Compact(a.BaseRegisters)
	return a, nil
}

// add appends inst and updates the derived flags.
func (a *PEAssignment) add(inst Instruction) {
	a.Instructions = append(a.Instructions, inst)

	switch inst.Format {
	case FormatPSRFMem:
		a.HasPSRFMem = true
	case FormatMem:
		a.HasMem = true
	case FormatHWL:
		a.HasHWL = true
	}

	var base string
	switch b := inst.Body.(type) {
	case MemOp:
		base = b.Base
	case PSRFMem:
		base = b.Base
	}
	if base != "" && (inst.Format == FormatMem || inst.Format == FormatPSRFMem) {
		a.BaseRegisters = append(a.BaseRegisters, base)
	}
}

func (c *Config) parseFunctions(root tree) error {
	fns, ok := root.child("functions")
	if !ok {
		return nil
	}
	entries, err := fns.entries()
	if err != nil {
		return err
	}

	for _, e := range entries {
		f := Function{Name: e.key, Bodies: map[int][]Instruction{}}
		addr, err := e.value.require("address")
		if err != nil {
			return err
		}
		if f.Address, err = addr.asInt32(); err != nil {
			return err
		}

		if list, ok := e.value.child("pe_assignments"); ok {
			items, err := list.items()
			if err != nil {
				return err
			}
			for _, it := range items {
				a, err := parseAssignment(it)
				if err != nil {
					return err
				}
				f.Bodies[a.PEID] = a.Instructions
			}
		}

		c.Functions = append(c.Functions, f)
	}

	slices.SortFunc(c.Functions, func(a, b Function) int {
		switch {
		case a.Name < b.Name:
			return -1
		case a.Name > b.Name:
			return 1
		}
		return 0
	})
	return nil
}

// Validate checks the values the generator cannot work without.
func (c *Config) Validate() error {
	if c.Hardware.PEsPerCluster <= 0 {
		return &Fault{
			Key: "hardware_config.clusters.pes_per_cluster",
			Err: fmt.Errorf("%w: must be > 0, got %d", ErrInvalid, c.Hardware.PEsPerCluster),
		}
	}
	if c.Hardware.TotalPEs < 0 {
		return &Fault{
			Key: "hardware_config.total_pes",
			Err: fmt.Errorf("%w: must be >= 0, got %d", ErrInvalid, c.Hardware.TotalPEs),
		}
	}
	for i, d := range c.Delays {
		if d < 0 {
			return &Fault{
				Key: fmt.Sprintf("delay_start[%d]", i),
				Err: fmt.Errorf("%w: must be >= 0, got %d", ErrInvalid, d),
			}
		}
	}
	return nil
}

// Warnings lists suspicious but accepted settings.
func (c *Config) Warnings() []string {
	var w []string

	h := c.Hardware
	if h.TotalPEs != h.ClustersCount*h.PEsPerCluster {
		w = append(w, fmt.Sprintf("total_pes %d != clusters.count %d * pes_per_cluster %d",
			h.TotalPEs, h.ClustersCount, h.PEsPerCluster))
	}
	if !slices.Contains([]int{1, 2, 4}, h.DataDup) {
		w = append(w, fmt.Sprintf("data_dup %d is not 1, 2 or 4; no bank offset is applied", h.DataDup))
	}
	for _, a := range c.Scheduling.Assignments {
		for _, reg := range a.BaseRegisters {
			if _, ok := c.Memory.Base(reg); !ok {
				w = append(w, fmt.Sprintf("pe %d uses base register %s missing from mem_config", a.PEID, reg))
			}
		}
	}

	return w
}
