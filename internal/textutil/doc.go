// Package textutil provides small string helpers shared by intake and the
// command-line presentation: file name sanitizing and display truncation.
package textutil
