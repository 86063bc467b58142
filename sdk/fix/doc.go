// Package fix provee el codec del protocolo FIX (tag=valor separado por SOH)
// usado por el gateway para recibir órdenes y responder Execution Reports.
//
// # Formato
//
// Cada frame es una secuencia ordenada de campos "tag=valor" terminados en SOH (0x01):
//
//	8=FIX.4.2|9=65|35=D|49=SENDER|34=1|11=ORDER123|55=BOND_XYZ|38=100|44=101.50|10=123|
//
// (en los ejemplos el SOH se representa con "|").
//
//   - 8 (BeginString) siempre es el primer campo
//   - 9 (BodyLength) cuenta los bytes entre el SOH que cierra el tag 9 y el inicio del tag 10
//   - 10 (CheckSum) es la suma de todos los bytes previos módulo 256, con 3 dígitos
//
// # Uso Básico (Decoder)
//
//	dec := fix.NewDecoder()
//	dec.Feed(chunk)
//	for {
//	    msg, err := dec.Next()
//	    if errors.Is(err, fix.ErrIncomplete) {
//	        break // esperar más bytes
//	    }
//	    if err != nil {
//	        // frame inválido: ya fue descartado, continuar
//	        continue
//	    }
//	    // Procesar msg...
//	}
//
// # Uso Básico (Encoder)
//
//	msg := fix.NewMessage(fix.MsgTypeHeartbeat)
//	msg.AppendUTCTimestamp(fix.TagSendingTime, time.Now())
//	raw := fix.Encode(msg) // agrega 9 y 10
//
// # Conexiones
//
// FrameReader y FrameWriter envuelven un Conn (net.Conn o similar) aplicando
// deadlines de lectura/escritura. El FrameReader distingue timeouts sin datos
// (ErrReadTimeout) para que el caller dispare heartbeats.
package fix
