package sexp

import (
	"fmt"
	"strconv"
)

// Float parses the i-th argument of a list node as a float64.
func (n *Node) Float(i int) (float64, error) {
	arg := n.Arg(i)
	if arg == nil || arg.List {
		return 0, fmt.Errorf("sexp: argument %d is not a scalar", i)
	}
	return strconv.ParseFloat(arg.Atom, 64)
}

// Int parses the i-th argument of a list node as an int.
func (n *Node) Int(i int) (int, error) {
	arg := n.Arg(i)
	if arg == nil || arg.List {
		return 0, fmt.Errorf("sexp: argument %d is not a scalar", i)
	}
	return strconv.Atoi(arg.Atom)
}

// String returns the i-th argument's text (quoted or not).
func (n *Node) String(i int) (string, error) {
	arg := n.Arg(i)
	if arg == nil || arg.List {
		return "", fmt.Errorf("sexp: argument %d is not a scalar", i)
	}
	return arg.Atom, nil
}

// Bool reports whether the i-th argument is the bare atom "yes".
// KiCad renders booleans as (fieldname yes) / (fieldname no), or
// sometimes by the mere presence/absence of a flag atom.
func (n *Node) Bool(i int) bool {
	arg := n.Arg(i)
	return arg != nil && !arg.List && arg.Atom == "yes"
}

// HasFlag reports whether a bare (unparenthesized) atom equal to name
// appears anywhere among a list's arguments, e.g. the "hide" in
// (property "Reference" "R1" (at 0 0 0) hide).
func (n *Node) HasFlag(name string) bool {
	if n == nil || !n.List {
		return false
	}
	for _, item := range n.Items {
		if !item.List && item.Atom == name {
			return true
		}
	}
	return false
}
