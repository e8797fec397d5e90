// Package core defines the primitive building blocks of the GraphFlow
// kernel: messages and key contracts, single-slot edges, gates, hierarchical
// attribute scopes, the Node contract every computational unit implements,
// lifecycle hooks and the kernel error taxonomy.
//
// Graph containers and the wave scheduler live in the graph package; concrete
// node implementations (function nodes, switches, model-backed nodes) live in
// the node package. Everything here is deliberately free of orchestration
// logic so that collaborator packages can depend on a small, stable surface.
package core
