// package dashboard shapes royalty statement aggregates into the payloads served to artists.
//
// Every figure is computed from stored statements on request. Revenue leaves this package
// as an [Amount], a decimal with two fractional digits.
package dashboard
