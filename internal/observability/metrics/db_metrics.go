package metrics

import (
	"database/sql"
	"log"

	"github.com/prometheus/client_golang/prometheus"
)

func registerDBMetrics(db *sql.DB, logger *log.Logger) {
	prometheus.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: metricPrefix + "fire_history_unreconciled",
			Help: "Fire history entries still awaiting a false-alarm decision",
		},
		func() float64 {
			return queryCount(db, logger, "SELECT COUNT(*) FROM fire_history WHERE false_alarm_status = '등록'")
		},
	))

	prometheus.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: metricPrefix + "reception_log_rows",
			Help: "Raw reception log rows currently retained",
		},
		func() float64 {
			return queryCount(db, logger, "SELECT COUNT(*) FROM data_reception_log")
		},
	))
}

func queryCount(db *sql.DB, logger *log.Logger, query string) float64 {
	if db == nil {
		return 0
	}
	var count int64
	if err := db.QueryRow(query).Scan(&count); err != nil {
		if logger != nil {
			logger.Printf("metrics query failed: %v", err)
		}
		return 0
	}
	if count < 0 {
		return 0
	}
	return float64(count)
}
