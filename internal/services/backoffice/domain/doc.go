// Package domain holds the pure business rules of the backoffice:
// entity types, constructors, and the arithmetic that drives statuses.
//
// Nothing here touches persistence or transport. Constructors accept
// injectable clocks and id generators so behavior stays deterministic in
// tests; computations over money use integer minor units throughout.
package domain
