// Licensed to the LF AI & Data foundation under one
// or more contributor license agreements. See the NOTICE file
// distributed with this work for additional information
// regarding copyright ownership. The ASF licenses this file
// to you under the Apache License, Version 2.0 (the
// "License"); you may not use this file except in compliance
// with the License. You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	serializerMetricSubsystem = "serializer"
)

var (
	LittleMetricsRegisterOnce sync.Once

	LittleDocumentsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: littleNamespace,
		Subsystem: serializerMetricSubsystem,
		Name:      "documents_total",
		Help:      "已完成编码或解码的文档数量",
	}, []string{directionLabelName, shapeLabelName})

	LittleBytesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: littleNamespace,
		Subsystem: serializerMetricSubsystem,
		Name:      "bytes_total",
		Help:      "编码写出或解码读入的字节总数",
	}, []string{directionLabelName})

	LittleDocumentSize = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: littleNamespace,
		Subsystem: serializerMetricSubsystem,
		Name:      "document_size_bytes",
		Help:      "单个文档的字节数分布",
		Buckets:   sizeBuckets,
	}, []string{directionLabelName})

	LittleErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: littleNamespace,
		Subsystem: serializerMetricSubsystem,
		Name:      "errors_total",
		Help:      "编码或解码失败的次数，按错误码区分",
	}, []string{directionLabelName, codeLabelName})

	LittleSchemaCacheEntries = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: littleNamespace,
		Subsystem: serializerMetricSubsystem,
		Name:      "schema_cache_entries",
		Help:      "当前已构建并缓存的类型结构数量",
	})
)

// RegisterLittleMetrics 将序列化相关的指标注册到 Prometheus Registerer 中。
func RegisterLittleMetrics(registry prometheus.Registerer) {
	LittleMetricsRegisterOnce.Do(func() {
		registry.MustRegister(LittleDocumentsTotal)
		registry.MustRegister(LittleBytesTotal)
		registry.MustRegister(LittleDocumentSize)
		registry.MustRegister(LittleErrorsTotal)
		registry.MustRegister(LittleSchemaCacheEntries)
	})
}
