// Package metricbundle agrupa instrumentos OpenTelemetry por dominio.
//
// Cada bundle encapsula contadores e histogramas con nombres
// <namespace>.<entity>.<metric_type> y métodos Record* que agregan los
// atributos propios del dominio.
//
// Uso básico:
//
//	metrics, err := metricbundle.NewSessionMetrics(meter)
//	if err != nil {
//	    return err
//	}
//	metrics.RecordFrameRejected(ctx, "CHECKSUM_MISMATCH")
package metricbundle
