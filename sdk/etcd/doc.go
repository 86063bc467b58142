// Package etcd proporciona un cliente para recuperar variables de configuración
// desde etcd v3.
//
// Estructura de claves:
// El cliente sigue el patrón de ruta `/APP/ENV/VAR_KEY` donde:
//   - `APP`: Nombre de la aplicación
//   - `ENV`: Entorno (development, testing, production)
//   - `VAR_KEY`: Clave de la variable
//
// Solo dos variables de entorno participan del bootstrap: ENV (namespace) y
// ETCD_ENDPOINTS (lista CSV del clúster).
//
// Ejemplo básico de uso:
//
//	client, err := etcd.New(
//		etcd.WithApp("fixgate"),
//		etcd.WithTimeout(5 * time.Second),
//	)
//	if err != nil {
//		return err
//	}
//	defer client.Close()
//
//	addr, _ := client.GetVarWithDefault(ctx, "server/listen_addr", ":5001")
//	hb, _ := client.GetVarDurationWithDefault(ctx, "session/heartbeat_interval_ms", 5*time.Second)
//	brokers, _ := client.GetVarListWithDefault(ctx, "sinks/kafka/brokers", []string{"localhost:9092"})
package etcd
