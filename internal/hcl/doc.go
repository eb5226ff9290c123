// Package hcl provides the concrete HCL implementation of program and
// settings loading. It is responsible for file discovery, parsing, and the
// translation of decoded schema blocks into the prog and config models.
package hcl
