package logger

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter limita mensagens repetitivas de uma mesma origem (ex.: erro de leitura numa porta desconectada).
// A primeira ocorrência sempre passa; depois, no máximo uma a cada intervalo.
type Limiter struct {
	interval   time.Duration
	mutex      sync.Mutex
	limiter    *rate.Limiter
	suppressed int
}

// NewLimiter cria um limitador com o intervalo mínimo entre mensagens
func NewLimiter(interval time.Duration) *Limiter {
	return &Limiter{
		interval: interval,
		limiter:  rate.NewLimiter(rate.Every(interval), 1),
	}
}

// Allow indica se a mensagem deve ser escrita agora e quantas foram suprimidas desde a última
func (l *Limiter) Allow() (bool, int) {
	return l.allowAt(time.Now())
}

func (l *Limiter) allowAt(now time.Time) (bool, int) {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	if !l.limiter.AllowN(now, 1) {
		l.suppressed++
		return false, 0
	}
	suppressed := l.suppressed
	l.suppressed = 0
	return true, suppressed
}

// Reset volta ao estado inicial (ex.: após uma leitura bem sucedida)
func (l *Limiter) Reset() {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	l.limiter = rate.NewLimiter(rate.Every(l.interval), 1)
	l.suppressed = 0
}

// Warnf escreve um aviso respeitando o limite
func (l *Limiter) Warnf(format string, args ...interface{}) {
	ok, suppressed := l.Allow()
	if !ok {
		return
	}
	if suppressed > 0 {
		logMessage(WARN, format+" (%d mensagens suprimidas)", append(args, suppressed)...)
		return
	}
	logMessage(WARN, format, args...)
}
