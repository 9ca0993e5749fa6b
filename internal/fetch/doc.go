// Package fetch provides the HTTP client shared by every scraper and API client.
//
// The client sends browser-like headers, limits its request rate, optionally
// routes through an http or socks5 proxy, and retries transport failures and
// 5xx/429 responses with jittered exponential backoff. Text bodies are
// decoded to UTF-8 using the response charset (GBK pages included).
package fetch
