// Package normalize canonicalizes entity names across tickers and aliases.
package normalize

import "strings"

// canonicalMap maps a canonical entity name to its known variants.
// Lookup is case-insensitive and tolerates a leading "$" on tickers.
var canonicalMap = map[string][]string{
	// Top crypto assets.
	"Bitcoin":          {"btc", "xbt", "bit coin", "bitcoins"},
	"Ethereum":         {"eth", "ether", "ethereum network"},
	"Tether":           {"usdt"},
	"BNB":              {"binance coin", "bnb chain token"},
	"Solana":           {"sol"},
	"XRP":              {"ripple token"},
	"USDC":             {"usd coin", "circle usdc"},
	"Cardano":          {"ada"},
	"Dogecoin":         {"doge"},
	"TRON":             {"trx"},
	"Avalanche":        {"avax"},
	"Chainlink":        {"link"},
	"Polkadot":         {"dot"},
	"Polygon":          {"matic", "pol", "polygon network"},
	"Litecoin":         {"ltc"},
	"Shiba Inu":        {"shib"},
	"Uniswap":          {"uni"},
	"Stellar":          {"xlm"},
	"Monero":           {"xmr"},
	"Cosmos":           {"atom"},
	"Aptos":            {"apt"},
	"Arbitrum":         {"arb"},
	"Optimism":         {"op"},
	"Near":             {"near protocol"},
	"Filecoin":         {"fil"},
	"Hedera":           {"hbar"},
	"Aave":             {"aave protocol"},
	"Maker":            {"mkr", "makerdao"},
	"Sui":              {"sui network"},
	"Toncoin":          {"ton", "the open network"},
	"Injective":        {"inj"},
	"Sei":              {"sei network"},
	"Render":           {"rndr"},
	"Kaspa":            {"kas"},
	"Algorand":         {"algo"},
	"VeChain":          {"vet"},
	"Fantom":           {"ftm"},
	"The Graph":        {"grt"},
	"Lido":             {"ldo", "lido dao"},
	"Curve":            {"crv", "curve finance"},
	"Pepe":             {"pepe coin"},
	"Bonk":             {"bonk coin"},
	"Worldcoin":        {"wld"},
	"Celestia":         {"tia"},
	"Stacks":           {"stx"},
	"Immutable":        {"imx", "immutable x"},
	"dYdX":             {"dydx chain"},
	"Ethereum Classic": {"etc"},
	"Bitcoin Cash":     {"bch"},
	"EigenLayer":       {"eigen"},

	// Exchanges, companies, institutions.
	"Binance":          {"binance exchange", "binance.us", "binance us"},
	"Coinbase":         {"coinbase exchange", "coinbase global"},
	"Kraken":           {"kraken exchange"},
	"OKX":              {"okex"},
	"Bybit":            {"bybit exchange"},
	"Gemini":           {"gemini exchange", "gemini trust"},
	"Bitfinex":         {"bitfinex exchange"},
	"Crypto.com":       {"cro", "crypto com"},
	"BlackRock":        {"black rock", "blackrock inc"},
	"Fidelity":         {"fidelity investments", "fidelity digital assets"},
	"Grayscale":        {"grayscale investments", "gbtc"},
	"MicroStrategy":    {"microstrategy inc", "mstr", "strategy"},
	"Tesla":            {"tsla", "tesla inc"},
	"PayPal":           {"pypl", "paypal holdings"},
	"Visa":             {"visa inc"},
	"Mastercard":       {"mastercard inc"},
	"JPMorgan":         {"jp morgan", "jpmorgan chase", "jpm"},
	"Goldman Sachs":    {"goldman", "gs"},
	"Circle":           {"circle internet financial"},
	"Ripple":           {"ripple labs"},
	"ConsenSys":        {"consensys software"},
	"OpenSea":          {"opensea marketplace"},
	"Chainalysis":      {"chainalysis inc"},
	"Galaxy Digital":   {"galaxy digital holdings"},
	"FTX":              {"ftx exchange", "ftx trading"},
	"Celsius":          {"celsius network"},
	"Genesis":          {"genesis global"},

	// Regulators and government bodies.
	"SEC":             {"securities and exchange commission", "u.s. sec", "us sec"},
	"CFTC":            {"commodity futures trading commission"},
	"DOJ":             {"department of justice", "justice department"},
	"IRS":             {"internal revenue service"},
	"Federal Reserve": {"fed", "the fed", "us federal reserve"},
	"Treasury":        {"us treasury", "u.s. treasury", "treasury department"},
	"FinCEN":          {"financial crimes enforcement network"},
	"OFAC":            {"office of foreign assets control"},
	"ECB":             {"european central bank"},
	"IMF":             {"international monetary fund"},
	"FCA":             {"financial conduct authority"},
	"ESMA":            {"european securities and markets authority"},
}

// variantIndex maps every lowercase variant (canonical names included)
// to its canonical form. Built once at package init.
var variantIndex = buildIndex()

func buildIndex() map[string]string {
	idx := make(map[string]string, len(canonicalMap)*3)
	for canonical, variants := range canonicalMap {
		idx[strings.ToLower(canonical)] = canonical
		for _, v := range variants {
			idx[strings.ToLower(v)] = canonical
		}
	}
	return idx
}

// Entity returns the canonical form of an entity name. Unknown names
// pass through unchanged (trimmed). The function is pure and
// idempotent: Entity(Entity(x)) == Entity(x).
func Entity(name string) string {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return ""
	}
	key := strings.ToLower(strings.TrimPrefix(trimmed, "$"))
	if canonical, ok := variantIndex[key]; ok {
		return canonical
	}
	return trimmed
}

// Known reports whether the name (or any alias of it) is in the map.
func Known(name string) bool {
	key := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(name), "$"))
	_, ok := variantIndex[key]
	return ok
}

// Canonicals returns every canonical name with its variants, for
// consumers that precompile per-entity patterns.
func Canonicals() map[string][]string {
	out := make(map[string][]string, len(canonicalMap))
	for canonical, variants := range canonicalMap {
		copied := make([]string, len(variants))
		copy(copied, variants)
		out[canonical] = copied
	}
	return out
}
