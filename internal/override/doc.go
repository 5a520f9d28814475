// Package override lets an operator pin individual steering snapshot fields
// to manual values. Pinned fields replace the computed values until cleared;
// configured [min,max] limits clamp what an operator may enter.
package override
