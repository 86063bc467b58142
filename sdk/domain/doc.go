// Package domain contiene los tipos de dominio del gateway, la transformación de
// frames FIX a órdenes canónicas, validaciones y el sistema de errores.
//
// # Orden canónica
//
// CanonicalOrder es el registro que se entrega downstream. Sus nombres JSON
// (order_id, symbol, quantity, price, transact_time, business_unit, trader_id,
// risk_category, processed_timestamp) son contrato.
//
// # Transformación
//
//	tr := domain.NewTransformer()
//	order := tr.Transform(msg)
//
// Los tags ausentes o con valores no numéricos se reemplazan por defaults; la
// transformación nunca falla. Para tests se fija el reloj:
//
//	tr := &domain.Transformer{Clock: func() time.Time { return fixed }}
//
// # Validaciones
//
//	if err := domain.ValidateFrame(msg); err != nil {
//	    // faltan tags del header estándar; solo se registra
//	}
//
// # Errores
//
//	err := domain.WrapError(domain.ErrSinkUnavailable, "redis xadd failed", cause)
//	if domain.CodeOf(err) == domain.ErrSinkUnavailable { ... }
package domain
