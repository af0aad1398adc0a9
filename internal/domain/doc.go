// Package domain models weather station readings, the civil-day arithmetic
// used to aggregate them, and the government alert feed the dashboard shows
// next to them.
//
// # Readings
//
// A station (ESP32 with DHT/BMP sensors, a tipping-bucket rain gauge and an
// anemometer) POSTs flat JSON:
//
//	{"deviceId":"esp32-001","temperature":24.1,"humidity":61,
//	 "pressure":948.2,"rain_mm2":0.2,"wind_ms":1.8,"ts":"2025-08-23T10:00:00-03:00"}
//
// temperature and humidity are required. Every other measurement is optional
// and stored as null when absent, never as zero, because a station may run
// with modules missing. ts accepts RFC 3339 with an offset or a Unix epoch in
// seconds or milliseconds (values >= 1e12 are milliseconds). When absent the
// ingestion instant is used.
//
// # Civil days
//
// All day-level statistics use one fixed civil timezone (America/Sao_Paulo
// unless configured otherwise), independent of the server's own zone. A day
// D covers [midnight D, midnight D+1) local, translated to UTC for the store
// query; the end is exclusive so a reading at exactly midnight belongs to one
// day only. Rolling windows ("last 24h") are anchored on the wall clock and
// include their end instant.
//
// # Alerts
//
// Alerts come from the INMET CAP feed. Each item's area, title and
// description are normalized (diacritics stripped, upper-cased) and matched
// against state names, macro-region names and bare UF codes. Severity follows
// the CAP scale:
//
//	Extreme (4) > Severe (3) > Moderate (2) > Minor (1) > unknown (0)
//
// City filtering consults the CAP detail document, whose "Municipios"
// parameter lists places as "CITY - UF". Matching is permissive: the bare city
// name is accepted when the feed omits the state suffix.
//
// # Idempotency
//
// A reading may carry an idempotency key. When the device supplies its own
// timestamp and no key, one is derived as a hash of device and timestamp (see
// [DeriveIdempotencyKey]), so a retried delivery resolves to the stored
// record. Readings with neither are accepted at-least-once.
package domain
