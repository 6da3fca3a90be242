package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// validationsTotal считает проверки доступа по результату и направлению.
var validationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "access_validations_total",
	Help: "Total number of access validations by result and action.",
}, []string{"result", "action"})
