package solver

import "sort"

// OrderDemands fixes the solve order: demands referenced by the objective
// come first (in operand appearance order), then demands reachable from an
// already-ordered demand through a cross-demand constraint, then the rest
// alphabetically. The input template is cycle-free by construction, so no
// cycle handling is needed.
func OrderDemands(req *Request) []string {
	for _, d := range req.Demands {
		d.sortBase = false
	}
	var order []string
	place := func(name string) {
		d, ok := req.Demands[name]
		if !ok || d.sortBase {
			return
		}
		d.sortBase = true
		order = append(order, name)
	}

	if req.Objective != nil {
		for _, op := range req.Objective.Operands {
			for _, ep := range op.Endpoints {
				if ep.Demand != "" {
					place(ep.Demand)
				}
			}
			if op.Demand != "" {
				place(op.Demand)
			}
		}
	}

	// Pull in cross-demand constraint partners of ordered demands until
	// the frontier stops growing. Constraint names are walked sorted so
	// the order is deterministic.
	cnames := make([]string, 0, len(req.Constraints))
	for name := range req.Constraints {
		cnames = append(cnames, name)
	}
	sort.Strings(cnames)
	for {
		grew := false
		for _, cname := range cnames {
			c := req.Constraints[cname]
			span := c.Demands()
			if len(span) < 2 {
				continue
			}
			anyOrdered := false
			for _, name := range span {
				if d, ok := req.Demands[name]; ok && d.sortBase {
					anyOrdered = true
					break
				}
			}
			if !anyOrdered {
				continue
			}
			for _, name := range span {
				if d, ok := req.Demands[name]; ok && !d.sortBase {
					place(name)
					grew = true
				}
			}
		}
		if !grew {
			break
		}
	}

	var rest []string
	for name, d := range req.Demands {
		if !d.sortBase {
			rest = append(rest, name)
		}
	}
	sort.Strings(rest)
	for _, name := range rest {
		place(name)
	}
	return order
}
