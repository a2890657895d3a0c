// Package analytics derives performance scores and health ratings from
// recorded session metrics. It is strictly read-only: everything is computed
// from a core.MetricsSource snapshot and nothing here touches session state.
package analytics
